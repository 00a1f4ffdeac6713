// Package schema declares which fields of a resource may be filtered or
// ordered, their types, and the functions a filter may call.
package schema

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/aipq/internal/value"
)

// FieldMemberSchema describes one addressable field.
type FieldMemberSchema struct {
	Type       value.Type `yaml:"type"`
	Filterable bool       `yaml:"filterable"`
	Orderable  bool       `yaml:"orderable"`
	Repeated   bool       `yaml:"repeated"`
}

// FunctionSchema describes a callable filter function.
type FunctionSchema struct {
	Args    []value.Type `yaml:"args"`
	Returns value.Type   `yaml:"returns"`
}

// Schema maps dotted field paths to their descriptions. It is built once at
// startup and only read afterwards.
type Schema struct {
	Fields    map[string]FieldMemberSchema `yaml:"fields"`
	Functions map[string]FunctionSchema    `yaml:"functions"`
}

// New returns an empty schema.
func New() *Schema {
	return &Schema{
		Fields:    make(map[string]FieldMemberSchema),
		Functions: make(map[string]FunctionSchema),
	}
}

// Field returns the member schema for a dotted path.
func (s *Schema) Field(path string) (FieldMemberSchema, bool) {
	if s == nil {
		return FieldMemberSchema{}, false
	}
	f, ok := s.Fields[path]
	return f, ok
}

// Function returns the schema for a function name.
func (s *Schema) Function(name string) (FunctionSchema, bool) {
	if s == nil {
		return FunctionSchema{}, false
	}
	f, ok := s.Functions[name]
	return f, ok
}

// WithField adds a field and returns s for chaining.
func (s *Schema) WithField(path string, f FieldMemberSchema) *Schema {
	s.Fields[path] = f
	return s
}

// WithFunction adds a function and returns s for chaining.
func (s *Schema) WithFunction(name string, f FunctionSchema) *Schema {
	s.Functions[name] = f
	return s
}

// FieldNames returns the declared paths in sorted order.
func (s *Schema) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every path is a well formed dotted identifier.
func (s *Schema) Validate() error {
	for _, name := range s.FieldNames() {
		if !validPath(name) {
			return fmt.Errorf("invalid field path %q", name)
		}
	}
	for name := range s.Functions {
		if !validPath(name) {
			return fmt.Errorf("invalid function name %q", name)
		}
	}
	return nil
}

func validPath(path string) bool {
	if path == "" {
		return false
	}
	for _, seg := range strings.Split(path, ".") {
		if seg == "" || seg == "AND" || seg == "OR" || seg == "NOT" {
			return false
		}
		for i, c := range seg {
			letter := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
			if letter {
				continue
			}
			if i == 0 || (c != '_' && (c < '0' || c > '9')) {
				return false
			}
		}
	}
	return true
}

// Parse decodes a YAML schema descriptor:
//
//	fields:
//	  user.age: {type: integer, filterable: true, orderable: true}
//	  task.tags: {type: string, filterable: true, repeated: true}
//	functions:
//	  regex: {args: [string, string], returns: boolean}
func Parse(data []byte) (*Schema, error) {
	s := New()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("decoding schema: %w", err)
	}
	if s.Fields == nil {
		s.Fields = make(map[string]FieldMemberSchema)
	}
	if s.Functions == nil {
		s.Functions = make(map[string]FunctionSchema)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load reads and parses a YAML schema file.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: schema path comes from config
	if err != nil {
		return nil, fmt.Errorf("reading schema: %w", err)
	}
	return Parse(data)
}
