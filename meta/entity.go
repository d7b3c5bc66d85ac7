package meta

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-meta-query/metatype"
	"github.com/spf13/cast"
)

// Entity is one row of a meta table.
type Entity struct {
	ID         uint64 `json:"meta_id" msgpack:"id"`
	ObjectID   uint64 `json:"object_id" msgpack:"object_id"`
	ObjectType string `json:"object_type" msgpack:"object_type"`
	Key        string `json:"meta_key" msgpack:"key"`
	Value      string `json:"meta_value" msgpack:"value"`
}

// Fields are the mutable columns of a meta row.
type Fields struct {
	ObjectID uint64 `json:"object_id"`
	Key      string `json:"meta_key"`
	Value    string `json:"meta_value"`
}

// Validate requires an owning object and a key.
func (f Fields) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.ObjectID, validation.Required),
		validation.Field(&f.Key, validation.Required, validation.Length(1, 255)),
	)
}

// Row maps the fields to the physical columns of d.
func (f Fields) Row(d *metatype.Descriptor) map[string]any {
	return map[string]any{
		d.Columns.ObjectID:  f.ObjectID,
		d.Columns.MetaKey:   f.Key,
		d.Columns.MetaValue: f.Value,
	}
}

// Row maps the entity to the physical columns of d.
func (e Entity) Row(d *metatype.Descriptor) map[string]any {
	row := Fields{ObjectID: e.ObjectID, Key: e.Key, Value: e.Value}.Row(d)
	row[d.Columns.MetaID] = e.ID
	return row
}

// FromRow builds an Entity from a raw row keyed by the physical columns of d.
// Role names are accepted as a fallback. A row without a usable primary key
// yields ErrNotFound.
func FromRow(d *metatype.Descriptor, row map[string]any) (Entity, error) {
	if len(row) == 0 {
		return Entity{}, ErrNotFound
	}

	id, err := cast.ToUint64E(column(d, row, metatype.RoleMetaID))
	if err != nil || id == 0 {
		return Entity{}, ErrNotFound
	}

	objectID, err := cast.ToUint64E(column(d, row, metatype.RoleObjectID))
	if err != nil {
		return Entity{}, fmt.Errorf("meta: %s row %d: object id: %w", d.ObjectType, id, err)
	}

	return Entity{
		ID:         id,
		ObjectID:   objectID,
		ObjectType: d.ObjectType,
		Key:        cast.ToString(column(d, row, metatype.RoleMetaKey)),
		Value:      cast.ToString(column(d, row, metatype.RoleMetaValue)),
	}, nil
}

func column(d *metatype.Descriptor, row map[string]any, role metatype.Role) any {
	if v, ok := row[d.Columns.Column(role)]; ok {
		return v
	}
	return row[string(role)]
}
