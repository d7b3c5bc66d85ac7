package testsupport

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-meta-query/meta"
)

// MetaRow is the fixture shape of one meta row.
type MetaRow struct {
	ObjectID uint64 `json:"object_id"`
	Key      string `json:"meta_key"`
	Value    string `json:"meta_value"`
}

// Fields converts the fixture row for meta.Store.Create.
func (r MetaRow) Fields() meta.Fields {
	return meta.Fields{ObjectID: r.ObjectID, Key: r.Key, Value: r.Value}
}

// LoadFixture loads test data from a fixture file.
// The path is relative to the test package directory.
func LoadFixture(t *testing.T, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture from %s: %v", path, err)
	}

	return data
}

// LoadFixtureJSON loads JSON test data from a fixture file and unmarshals it.
func LoadFixtureJSON(t *testing.T, path string, dest any) {
	t.Helper()

	data := LoadFixture(t, path)
	if err := json.Unmarshal(data, dest); err != nil {
		t.Fatalf("failed to unmarshal JSON fixture from %s: %v", path, err)
	}
}

// LoadMetaRows reads a JSON array of MetaRow from testdata.
func LoadMetaRows(t *testing.T, filename string) []MetaRow {
	t.Helper()

	var rows []MetaRow
	LoadFixtureJSON(t, FixturePath(filename), &rows)
	return rows
}

// Seed creates rows through store and returns their ids in order.
func Seed(t *testing.T, store *meta.Store, objectType string, rows []MetaRow) []uint64 {
	t.Helper()

	ids := make([]uint64, 0, len(rows))
	for i, row := range rows {
		id, err := store.Create(context.Background(), objectType, row.Fields())
		if err != nil {
			t.Fatalf("failed to seed %s row %d: %v", objectType, i, err)
		}
		ids = append(ids, id)
	}
	return ids
}

// TempFile creates a temporary file with the given content that is removed
// when the test ends.
func TempFile(t *testing.T, pattern string, content []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), pattern)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

// FixturePath constructs a path to a fixture file relative to the testdata directory.
func FixturePath(filename string) string {
	return filepath.Join("testdata", filename)
}
