package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSavePageToken_CreatesNewFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "aipq.yaml")

	err := SavePageToken(configPath, PageTokenConfig{
		Strategy:       "rsa",
		URLSafe:        true,
		PrivateKeyFile: "pagetoken.pem",
	})
	require.NoError(t, err)

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "page_token:")
	assert.Contains(t, string(data), "strategy: rsa")
	assert.Contains(t, string(data), "url_safe: true")
	assert.Contains(t, string(data), "private_key_file: pagetoken.pem")
	assert.NotContains(t, string(data), "secret")
}

func TestSavePageToken_PreservesOtherConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "aipq.yaml")
	initial := `# the dialect used by aipq sql
dialect: sqlite
page_token:
  strategy: base64
query:
  max_page_size: 50
`
	require.NoError(t, os.WriteFile(configPath, []byte(initial), 0o600))

	require.NoError(t, SavePageToken(configPath, PageTokenConfig{Strategy: "aes256gcm", Key: "00ff"}))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "# the dialect used by aipq sql")
	assert.Contains(t, content, "dialect: sqlite")
	assert.Contains(t, content, "max_page_size: 50")
	assert.Contains(t, content, "strategy: aes256gcm")
	assert.NotContains(t, content, "strategy: base64")

	v := viper.New()
	v.SetConfigFile(configPath)
	require.NoError(t, v.ReadInConfig())
	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	require.Equal(t, "aes256gcm", cfg.PageToken.Strategy)
	require.Equal(t, "00ff", cfg.PageToken.Key)
	require.False(t, cfg.PageToken.URLSafe)
}

func TestSaveRename_SortedAndReloadable(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "aipq.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("dialect: mysql\n"), 0o600))

	err := SaveRename(configPath, map[string]string{
		"user":        "u",
		"task.userId": "user_id",
	})
	require.NoError(t, err)

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, "dialect: mysql\nrename:\n  task.userId: user_id\n  user: u\n", string(data))
}

func TestSaveRename_RejectsInvalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "aipq.yaml")
	err := SaveRename(configPath, map[string]string{"user": ""})
	require.Error(t, err)

	_, statErr := os.Stat(configPath)
	require.True(t, os.IsNotExist(statErr), "nothing should be written")
}

func TestSave_RejectsNonMappingRoot(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "aipq.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("- a\n- b\n"), 0o600))

	err := SavePageToken(configPath, PageTokenConfig{Strategy: "plain"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "not a mapping")
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "aipq.yaml")
	require.NoError(t, SavePageToken(configPath, PageTokenConfig{Strategy: "plain"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "aipq.yaml", entries[0].Name())
}

func TestSaveSchemaFile_OnDefaultTemplate(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "aipq.yaml")
	require.NoError(t, WriteDefaultConfig(configPath))
	require.NoError(t, SaveSchemaFile(configPath, "schema.yaml"))

	v := viper.New()
	v.SetConfigFile(configPath)
	require.NoError(t, v.ReadInConfig())
	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	require.Equal(t, "schema.yaml", cfg.SchemaFile)
	require.Equal(t, "postgres", cfg.Dialect)

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# SQL dialect for the sql command")
}
