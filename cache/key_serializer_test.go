package cache

import (
	"strings"
	"testing"
)

func joinWithSeparator(parts ...string) string {
	return strings.Join(parts, KeySeparator)
}

func TestDefaultKeySerializer_BasicTypes(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	tests := []struct {
		name      string
		namespace string
		args      []any
		want      string
	}{
		{
			name:      "no args",
			namespace: "query",
			args:      []any{},
			want:      "query",
		},
		{
			name:      "single int",
			namespace: "query",
			args:      []any{42},
			want:      joinWithSeparator("query", "42"),
		},
		{
			name:      "multiple basic types",
			namespace: "query",
			args:      []any{1, "hello", true, 3.14},
			want:      joinWithSeparator("query", "1", `"hello"`, "true", "3.14"),
		},
		{
			name:      "string containing separator is quoted",
			namespace: "query",
			args:      []any{"a::b"},
			want:      joinWithSeparator("query", `"a::b"`),
		},
		{
			name:      "nil",
			namespace: "query",
			args:      []any{nil},
			want:      joinWithSeparator("query", "nil"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := serializer.SerializeKey(tt.namespace, tt.args...)
			if got != tt.want {
				t.Errorf("SerializeKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDefaultKeySerializer_Collections(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	var nilSlice []uint64
	if serializer.SerializeKey("q", nilSlice) != serializer.SerializeKey("q", []uint64{}) {
		t.Error("nil and empty slices must serialize identically")
	}

	if serializer.SerializeKey("q", []uint64{1, 2}) == serializer.SerializeKey("q", []uint64{2, 1}) {
		t.Error("slice order must be significant")
	}

	m1 := map[string]int{"b": 2, "a": 1, "c": 3}
	m2 := map[string]int{"c": 3, "a": 1, "b": 2}
	if serializer.SerializeKey("q", m1) != serializer.SerializeKey("q", m2) {
		t.Error("map serialization must not depend on iteration order")
	}
}

type taggedSpec struct {
	Key     string `key:"k"`
	Ignored string `key:"-"`
	Number  int
	hidden  int
}

func TestDefaultKeySerializer_StructTags(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	got := serializer.SerializeKey("q", taggedSpec{Key: "color", Ignored: "x", Number: 5, hidden: 9})
	want := joinWithSeparator("q", `struct:{k:"color",Number:5}`)
	if got != want {
		t.Errorf("SerializeKey() = %v, want %v", got, want)
	}

	a := serializer.SerializeKey("q", taggedSpec{Key: "color", Ignored: "x"})
	b := serializer.SerializeKey("q", taggedSpec{Key: "color", Ignored: "y"})
	if a != b {
		t.Error("fields tagged key:\"-\" must not affect the key")
	}

	p := &taggedSpec{Key: "color"}
	if serializer.SerializeKey("q", p) != serializer.SerializeKey("q", *p) {
		t.Error("pointers must serialize as their target")
	}
}

func TestFingerprint(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	a := Fingerprint(serializer, "q", taggedSpec{Key: "color", Number: 1})
	b := Fingerprint(serializer, "q", taggedSpec{Key: "color", Number: 1})
	c := Fingerprint(serializer, "q", taggedSpec{Key: "color", Number: 2})

	if len(a) != 16 {
		t.Errorf("expected 16 hex chars, got %q", a)
	}
	if a != b {
		t.Error("fingerprint must be deterministic")
	}
	if a == c {
		t.Error("different input must produce a different fingerprint")
	}
}
