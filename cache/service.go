package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// ErrMiss is returned by Service.Get when the key is not present.
var ErrMiss = errors.New("cache: miss")

// ErrInvalidResultType is returned when a cached payload cannot be decoded into the requested type.
var ErrInvalidResultType = errors.New("cache: invalid result type")

// Kind partitions the keys that live inside a single object type group.
type Kind string

const (
	KindEntity Kind = "entity"
	KindQuery  Kind = "query"
	KindToken  Kind = "last_changed"
)

// Key is a structured cache key. Group is the object type that owns the entry,
// Kind the entry family, ID the entry identifier inside the family and Token the
// invalidation token the entry was computed under (zero for untokenized entries).
type Key struct {
	Group string
	Kind  Kind
	ID    string
	Token uint64
}

// String renders the key for backends that only understand flat strings.
// The group is length prefixed so that groups sharing a prefix, or containing
// the separator, can never produce the same flat key.
func (k Key) String() string {
	s := strconv.Itoa(len(k.Group)) + ":" + k.Group + KeySeparator + string(k.Kind) + KeySeparator + k.ID
	if k.Token != 0 {
		s += KeySeparator + strconv.FormatUint(k.Token, 10)
	}
	return s
}

// Service is the external key/value cache the object cache sits on.
// Implementations must be safe for concurrent use; compound operations
// (Get followed by Add) are not expected to be transactional.
type Service interface {
	// Get returns ErrMiss when the key is absent.
	Get(ctx context.Context, key Key) ([]byte, error)
	// Add stores value only if key is absent and reports whether it did.
	Add(ctx context.Context, key Key, value []byte) (bool, error)
	Set(ctx context.Context, key Key, value []byte) error
	Delete(ctx context.Context, key Key) error
}

// FetchFn is the function signature GetOrFetch expects when loading from the source of truth.
type FetchFn[T any] func(ctx context.Context) (T, error)

// GetOrFetch reads key from service and decodes it into T. On a miss, or on any
// cache failure, it calls fetchFn and adds the result with add-if-absent
// semantics. When another writer won the add, the winner's value is returned.
// Cache failures never fail the call; only fetchFn errors are returned.
func GetOrFetch[T any](ctx context.Context, service Service, key Key, fetchFn FetchFn[T]) (T, error) {
	if v, err := load[T](ctx, service, key); err == nil {
		return v, nil
	}

	v, err := fetchFn(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	data, err := Encode(v)
	if err != nil {
		return v, nil
	}

	added, err := service.Add(ctx, key, data)
	if err != nil || added {
		return v, nil
	}

	if winner, err := load[T](ctx, service, key); err == nil {
		return winner, nil
	}
	return v, nil
}

func load[T any](ctx context.Context, service Service, key Key) (T, error) {
	var v T
	data, err := service.Get(ctx, key)
	if err != nil {
		return v, err
	}
	if err := Decode(data, &v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrInvalidResultType, err)
	}
	return v, nil
}
