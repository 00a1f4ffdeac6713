package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/aipq/internal/value"
)

const descriptor = `
fields:
  user.id: {type: string, filterable: true, orderable: true}
  user.age: {type: integer, filterable: true, orderable: true}
  task.deleted: {type: boolean, filterable: true}
  task.tags: {type: string, filterable: true, repeated: true}
functions:
  regex: {args: [string, string], returns: boolean}
`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(descriptor))
	require.NoError(t, err)

	age, ok := s.Field("user.age")
	require.True(t, ok)
	assert.Equal(t, FieldMemberSchema{Type: value.TypeInteger, Filterable: true, Orderable: true}, age)

	tags, ok := s.Field("task.tags")
	require.True(t, ok)
	assert.True(t, tags.Repeated)
	assert.False(t, tags.Orderable)

	fn, ok := s.Function("regex")
	require.True(t, ok)
	assert.Equal(t, []value.Type{value.TypeString, value.TypeString}, fn.Args)
	assert.Equal(t, value.TypeBoolean, fn.Returns)

	assert.Equal(t, []string{"task.deleted", "task.tags", "user.age", "user.id"}, s.FieldNames())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"unknown type", "fields:\n  a: {type: blob}"},
		{"bad path", "fields:\n  a..b: {type: string}"},
		{"digit start", "fields:\n  1a: {type: string}"},
		{"underscore start", "fields:\n  a._b: {type: string}"},
		{"keyword segment", "fields:\n  task.OR: {type: string}"},
		{"not yaml", "fields: ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.in))
			require.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(descriptor), 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, s.Fields, 4)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestNilSchemaLookups(t *testing.T) {
	var s *Schema
	_, ok := s.Field("a")
	assert.False(t, ok)
	_, ok = s.Function("f")
	assert.False(t, ok)
}

func TestRenameMap(t *testing.T) {
	m := RenameMap{"user": "u", "task.userId": "user_id"}

	assert.Equal(t, []string{"u", "age"}, m.Rename("user.age"))
	assert.Equal(t, []string{"task", "user_id"}, m.Rename("task.userId"))
	assert.Equal(t, []string{"task", "deleted"}, m.Rename("task.deleted"))
	assert.Equal(t, []string{"id"}, RenameMap(nil).Rename("id"))
}
