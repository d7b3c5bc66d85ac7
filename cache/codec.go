package cache

import "github.com/vmihailenco/msgpack/v5"

// Encode serializes a cache value. Both backends store the same bytes, so an
// entry written by one process can be read by another sharing a redis service.
func Encode(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

// Decode deserializes a cache value produced by Encode into v.
func Decode(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}
