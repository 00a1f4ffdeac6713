package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/aipq/internal/log"
)

// SavePageToken updates the page_token section in the config file.
// This preserves comments and formatting in other sections by using yaml.Node.
func SavePageToken(configPath string, pt PageTokenConfig) error {
	return saveSection(configPath, "page_token", buildPageTokenNode(pt))
}

// SaveRename updates the rename section in the config file.
func SaveRename(configPath string, rename map[string]string) error {
	if err := ValidateRename(rename); err != nil {
		return err
	}
	return saveSection(configPath, "rename", buildRenameNode(rename))
}

// SaveSchemaFile points schema_file at path.
func SaveSchemaFile(configPath, path string) error {
	return saveSection(configPath, "schema_file", scalar(path))
}

func saveSection(configPath, key string, section *yaml.Node) error {
	data, err := os.ReadFile(configPath) //nolint:gosec // G304: path is the active config file
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}

	// Parse into yaml.Node to preserve comments
	var doc yaml.Node
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	if doc.Kind == 0 {
		doc = yaml.Node{
			Kind: yaml.DocumentNode,
			Content: []*yaml.Node{
				{Kind: yaml.MappingNode},
			},
		}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return fmt.Errorf("parsing config: top level of %s is not a mapping", configPath)
	}

	root := doc.Content[0]
	found := false
	for i := 0; i < len(root.Content)-1; i += 2 {
		if root.Content[i].Value == key {
			root.Content[i+1] = section
			found = true
			break
		}
	}
	if !found {
		root.Content = append(root.Content, scalar(key), section)
	}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&doc); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_ = encoder.Close()

	if err := writeAtomic(configPath, buf.Bytes()); err != nil {
		return err
	}
	log.Info(log.CatConfig, "Saved config section", "path", configPath, "section", key)
	return nil
}

// writeAtomic writes to a temp file in the same directory, then renames.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".aipq.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: v}
}

// buildPageTokenNode renders the section, omitting empty optional fields.
func buildPageTokenNode(pt PageTokenConfig) *yaml.Node {
	node := &yaml.Node{Kind: yaml.MappingNode}
	add := func(k, v string) {
		if v != "" {
			node.Content = append(node.Content, scalar(k), scalar(v))
		}
	}
	add("strategy", pt.Strategy)
	node.Content = append(node.Content,
		scalar("url_safe"),
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(pt.URLSafe)},
	)
	add("key", pt.Key)
	add("secret", pt.Secret)
	add("key_info", pt.KeyInfo)
	add("private_key_file", pt.PrivateKeyFile)
	add("public_key_file", pt.PublicKeyFile)
	return node
}

// buildRenameNode renders renames with sorted keys so saves are stable.
func buildRenameNode(rename map[string]string) *yaml.Node {
	keys := make([]string, 0, len(rename))
	for k := range rename {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	node := &yaml.Node{Kind: yaml.MappingNode, Content: make([]*yaml.Node, 0, 2*len(keys))}
	for _, k := range keys {
		node.Content = append(node.Content, scalar(k), scalar(rename[k]))
	}
	return node
}
