// Package meta provides the meta entity and the cache aware CRUD store.
//
// Entities are always resolved from an object type and id:
//
//	e, err := store.Resolve(ctx, "post", 42)
//	if meta.IsNotFound(err) {
//		// absent row
//	}
//
//	err = store.Update(ctx, &e, meta.Fields{ObjectID: e.ObjectID, Key: e.Key, Value: "blue"})
//
// Update and Delete only accept resolved entities; there is no write by raw id.
package meta
