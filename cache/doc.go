// Package cache defines the key/value cache service the object cache sits on.
//
// # Overview
//
// The package exports:
//
//   - Service: get, add-if-absent, set and delete over structured keys
//   - Key: a (group, kind, id, token) tuple rendered to a collision free string
//   - GetOrFetch: read-through helper with add-if-absent population
//   - KeySerializer and Fingerprint: stable hashing of query specifications
//
// Values are msgpack encoded so a memory service and a redis service hold
// the same bytes for the same value.
//
// # Basic Usage
//
//	svc, err := cache.NewService(cache.DefaultConfig())
//	if err != nil {
//		return err
//	}
//
//	key := cache.Key{Group: "post", Kind: cache.KindEntity, ID: "42"}
//	entity, err := cache.GetOrFetch(ctx, svc, key, func(ctx context.Context) (Entity, error) {
//		return storage.Load(ctx, 42)
//	})
//
// # Backends
//
// BackendMemory keeps entries in a sharded sturdyc client local to the
// process. BackendRedis shares entries between processes and implements
// Add with SETNX.
//
// # Failure Handling
//
// GetOrFetch never fails because of the cache. A backend error or an
// undecodable payload is treated as a miss and the fetch function runs.
package cache
