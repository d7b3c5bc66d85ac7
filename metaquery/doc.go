// Package metaquery builds and runs filtered, sorted and paginated queries
// over the meta table of a registered object type.
//
// A Spec describes the filters (exact, IN and NOT IN over meta id, object
// id, key and value), a wildcard search, the ordering and the page. Loose
// argument maps are turned into a Spec with ParseArgs.
//
//	q := metaquery.New(db, store)
//	res, err := q.Run(ctx, "post", metaquery.Spec{
//		KeyIn:  []string{"color", "size"},
//		Number: 20,
//		Paged:  2,
//	})
//
// Matching ids and the found row count are cached under a fingerprint of the
// normalized spec and the type's invalidation token. Entities are then
// resolved through the meta.Store entity cache; ids whose rows disappeared in
// the meantime are dropped from the result.
package metaquery
