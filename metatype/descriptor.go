package metatype

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Role is the logical purpose of a column in a meta table.
type Role string

const (
	RoleMetaID    Role = "meta_id"
	RoleObjectID  Role = "object_id"
	RoleMetaKey   Role = "meta_key"
	RoleMetaValue Role = "meta_value"
)

// Roles lists every column role in canonical order.
var Roles = []Role{RoleMetaID, RoleObjectID, RoleMetaKey, RoleMetaValue}

var identPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Columns maps each role to a physical column name.
type Columns struct {
	MetaID    string `json:"meta_id" mapstructure:"meta_id"`
	ObjectID  string `json:"object_id" mapstructure:"object_id"`
	MetaKey   string `json:"meta_key" mapstructure:"meta_key"`
	MetaValue string `json:"meta_value" mapstructure:"meta_value"`
}

// Column returns the physical column for role.
func (c Columns) Column(role Role) string {
	switch role {
	case RoleMetaID:
		return c.MetaID
	case RoleObjectID:
		return c.ObjectID
	case RoleMetaKey:
		return c.MetaKey
	case RoleMetaValue:
		return c.MetaValue
	}
	return ""
}

// All returns the physical columns in role order.
func (c Columns) All() []string {
	return []string{c.MetaID, c.ObjectID, c.MetaKey, c.MetaValue}
}

// Validate requires every role to be mapped to a safe identifier.
func (c Columns) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.MetaID, validation.Required, validation.Match(identPattern)),
		validation.Field(&c.ObjectID, validation.Required, validation.Match(identPattern)),
		validation.Field(&c.MetaKey, validation.Required, validation.Match(identPattern)),
		validation.Field(&c.MetaValue, validation.Required, validation.Match(identPattern)),
	)
}

// merge fills the empty roles of c from defaults.
func (c Columns) merge(defaults Columns) Columns {
	if c.MetaID == "" {
		c.MetaID = defaults.MetaID
	}
	if c.ObjectID == "" {
		c.ObjectID = defaults.ObjectID
	}
	if c.MetaKey == "" {
		c.MetaKey = defaults.MetaKey
	}
	if c.MetaValue == "" {
		c.MetaValue = defaults.MetaValue
	}
	return c
}

// Labels are the human readable names of a type.
type Labels struct {
	Singular string `json:"singular"`
	Plural   string `json:"plural"`
}

// EditLinkFunc builds the admin URL of the object owning a meta row.
type EditLinkFunc func(objectID uint64) string

// Descriptor is the resolved schema of one object type.
type Descriptor struct {
	ObjectType string       `json:"object_type"`
	TableName  string       `json:"table_name"`
	Columns    Columns      `json:"columns"`
	Labels     Labels       `json:"labels"`
	Global     bool         `json:"global"`
	EditLink   EditLinkFunc `json:"-"`
}

// Resolve maps a caller supplied field name to a column role. Accepted names
// are the role names, the short aliases (id, ID, object_id, key, value), the
// type specific object alias (<type>_id) and the physical column names.
func (d *Descriptor) Resolve(field string) (Role, bool) {
	switch field {
	case "id", "ID", string(RoleMetaID), d.Columns.MetaID:
		return RoleMetaID, true
	case string(RoleObjectID), d.ObjectType + "_id", d.Columns.ObjectID:
		return RoleObjectID, true
	case "key", string(RoleMetaKey), d.Columns.MetaKey:
		return RoleMetaKey, true
	case "value", string(RoleMetaValue), d.Columns.MetaValue:
		return RoleMetaValue, true
	}
	return "", false
}

// Column resolves field and returns its physical column.
func (d *Descriptor) Column(field string) (string, bool) {
	role, ok := d.Resolve(field)
	if !ok {
		return "", false
	}
	return d.Columns.Column(role), true
}

// EditURL returns the edit link for objectID when the type has a resolver.
func (d *Descriptor) EditURL(objectID uint64) (string, bool) {
	if d.EditLink == nil || objectID == 0 {
		return "", false
	}
	url := d.EditLink(objectID)
	return url, url != ""
}

func (d *Descriptor) clone() *Descriptor {
	c := *d
	return &c
}
