// Package objectcache caches meta entities and query results per object type.
//
// Each type owns an invalidation token. Query results are stored under
// (fingerprint, token), so bumping the token orphans every result of the
// type without enumerating keys. Invalidate evicts one entity and bumps the
// token; writers call it after every mutation.
package objectcache
