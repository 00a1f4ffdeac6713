// Package templates embeds the example schema descriptors written by "aipq init".
package templates

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed schemas/*.yaml
var schemaTemplates embed.FS

// SchemaFS returns the embedded filesystem of example schemas.
func SchemaFS() fs.FS {
	sub, _ := fs.Sub(schemaTemplates, "schemas")
	return sub
}

// SchemaNames lists the example schemas without their extension.
func SchemaNames() []string {
	entries, _ := fs.ReadDir(SchemaFS(), ".")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
	}
	sort.Strings(names)
	return names
}

// Schema returns the example schema called name.
func Schema(name string) ([]byte, error) {
	data, err := fs.ReadFile(SchemaFS(), name+".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown example schema %q (have %s)", name, strings.Join(SchemaNames(), ", "))
	}
	return data, nil
}
