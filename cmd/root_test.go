package cmd

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/aipq/internal/log"
	"github.com/zjrosen/aipq/internal/pagetoken"
)

const testSchema = `fields:
  id: {type: string, filterable: true, orderable: true}
  age: {type: integer, filterable: true, orderable: true}
  name: {type: string, filterable: true}
`

const testRecords = `[
  {"id": "u1", "name": "ada", "age": 25},
  {"id": "u2", "name": "bob", "age": 41},
  {"id": "u3", "name": "cy", "age": 30},
  {"id": "u4", "name": "dee", "age": 41},
  {"id": "u5", "name": "eve", "age": 52}
]`

// writeConfig creates a schema and a config file in a temp dir and returns
// the config path. extra is appended to the config.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "schema.yaml")
	require.NoError(t, os.WriteFile(schemaPath, []byte(testSchema), 0o600))

	configPath := filepath.Join(dir, "aipq.yaml")
	content := "schema_file: " + schemaPath + "\n" +
		"query:\n  primary_ordering_term: id asc\n" +
		extra
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))
	return configPath
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, child := range c.Commands() {
		resetFlags(child)
	}
}

// execute runs the CLI in-process with fresh global state.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeInput(t, "", args...)
}

// executeInput is execute with stdin.
func executeInput(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	viper.Reset()
	resetFlags(rootCmd)
	t.Cleanup(log.Reset)

	var out bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func decodeOutput(t *testing.T, out string, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(out), v), "output: %s", out)
}

func TestParse_Canonical(t *testing.T) {
	out, err := execute(t, "parse", `a=1 AND b:"x"`, "--order-by", "age desc,id")
	require.NoError(t, err)

	var got struct {
		Filter struct {
			Filter string   `json:"filter"`
			Names  []string `json:"names"`
		} `json:"filter"`
		OrderBy string `json:"order_by"`
	}
	decodeOutput(t, out, &got)
	require.Equal(t, `a = 1 AND b:"x"`, got.Filter.Filter)
	require.ElementsMatch(t, []string{"a", "b"}, got.Filter.Names)
	require.Equal(t, "age desc, id asc", got.OrderBy)
}

func TestParse_SyntaxError(t *testing.T) {
	out, err := execute(t, "parse", `a = (`)
	require.Error(t, err)

	var got struct {
		Error      string `json:"error"`
		ClientSide bool   `json:"client_side"`
	}
	decodeOutput(t, out, &got)
	require.NotEmpty(t, got.Error)
	require.True(t, got.ClientSide)
}

func TestValidate(t *testing.T) {
	configPath := writeConfig(t, "")

	out, err := execute(t, "validate", "-c", configPath, "-f", "age >= 30", "-o", "age desc")
	require.NoError(t, err)
	var ok struct {
		Valid   bool   `json:"valid"`
		OrderBy string `json:"order_by"`
	}
	decodeOutput(t, out, &ok)
	require.True(t, ok.Valid)
	require.Equal(t, "age desc", ok.OrderBy)

	out, err = execute(t, "validate", "-c", configPath, "-f", `nope = 1`)
	require.Error(t, err)
	var bad struct {
		Path       string `json:"path"`
		ClientSide bool   `json:"client_side"`
	}
	decodeOutput(t, out, &bad)
	require.Equal(t, "nope", bad.Path)
	require.True(t, bad.ClientSide)
}

func TestEval_WalksPages(t *testing.T) {
	configPath := writeConfig(t, "")
	recordsPath := filepath.Join(t.TempDir(), "records.json")
	require.NoError(t, os.WriteFile(recordsPath, []byte(testRecords), 0o600))

	type page struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
		NextPageToken string `json:"next_page_token"`
	}
	ids := func(p page) []string {
		out := make([]string, len(p.Items))
		for i, it := range p.Items {
			out[i] = it.ID
		}
		return out
	}

	out, err := execute(t, "eval", recordsPath, "-c", configPath, "-f", "age >= 30", "-o", "age desc", "-n", "2")
	require.NoError(t, err)
	var first page
	decodeOutput(t, out, &first)
	require.Equal(t, []string{"u5", "u2"}, ids(first))
	require.NotEmpty(t, first.NextPageToken)

	out, err = execute(t, "eval", recordsPath, "-c", configPath, "-f", "age >= 30", "-o", "age desc", "-n", "2",
		"-t", first.NextPageToken)
	require.NoError(t, err)
	var second page
	decodeOutput(t, out, &second)
	require.Equal(t, []string{"u4", "u3"}, ids(second))
	require.Empty(t, second.NextPageToken)
}

func TestEval_TokenBoundToFilter(t *testing.T) {
	configPath := writeConfig(t, "")
	recordsPath := filepath.Join(t.TempDir(), "records.json")
	require.NoError(t, os.WriteFile(recordsPath, []byte(testRecords), 0o600))

	out, err := execute(t, "eval", recordsPath, "-c", configPath, "-o", "age", "-n", "1")
	require.NoError(t, err)
	var first struct {
		NextPageToken string `json:"next_page_token"`
	}
	decodeOutput(t, out, &first)

	out, err = execute(t, "eval", recordsPath, "-c", configPath, "-o", "age", "-n", "1",
		"-f", "age > 1", "-t", first.NextPageToken)
	require.Error(t, err)
	var bad struct {
		Field string `json:"field"`
	}
	decodeOutput(t, out, &bad)
	require.Equal(t, "page_token", bad.Field)
}

func TestSQL_Postgres(t *testing.T) {
	configPath := writeConfig(t, "")

	out, err := execute(t, "sql", "-c", configPath, "-f", "age >= 30", "-n", "10", "--table", "users", "--columns", "id,name")
	require.NoError(t, err)

	var got struct {
		SQL   string `json:"sql"`
		Where string `json:"where"`
		Args  []any  `json:"args"`
		Limit uint32 `json:"limit"`
	}
	decodeOutput(t, out, &got)
	require.Equal(t, `"age" >= $1`, got.Where)
	require.Equal(t, []any{float64(30)}, got.Args)
	require.Equal(t, uint32(11), got.Limit)
	require.Contains(t, got.SQL, `SELECT id, name FROM users WHERE "age" >= $1 ORDER BY`)
}

func TestSQL_DialectFromEnvironment(t *testing.T) {
	configPath := writeConfig(t, "")
	t.Setenv("AIPQ_DIALECT", "sqlite")

	out, err := execute(t, "sql", "-c", configPath, "-f", "age >= 30")
	require.NoError(t, err)
	var got struct {
		Where string `json:"where"`
	}
	decodeOutput(t, out, &got)
	require.Equal(t, `"age" >= ?`, got.Where)
}

func TestSQL_SearchWithoutFields(t *testing.T) {
	configPath := writeConfig(t, "")

	_, err := execute(t, "sql", "-c", configPath, "-q", "ada")
	require.Error(t, err)
}

func TestSQL_Search(t *testing.T) {
	configPath := writeConfig(t, "  search_fields: [name]\n")

	out, err := execute(t, "sql", "-c", configPath, "-q", "ada")
	require.NoError(t, err)
	var got struct {
		Where string `json:"where"`
		Args  []any  `json:"args"`
	}
	decodeOutput(t, out, &got)
	require.Contains(t, got.Where, `"name" LIKE $1`)
	require.Equal(t, []any{"%ada%"}, got.Args)
}

func TestToken_NextAndDecode(t *testing.T) {
	configPath := writeConfig(t, "")

	out, err := execute(t, "token", "next", "-c", configPath, "-o", "age desc", "-n", "10",
		"--record", `{"id": "u7", "age": 41}`)
	require.NoError(t, err)
	var next nextTokenResult
	decodeOutput(t, out, &next)
	require.Equal(t, "keyset", next.Kind)

	out, err = execute(t, "token", "decode", "-c", configPath, "--", next.NextPageToken)
	require.NoError(t, err)
	var state struct {
		Strategy    string `json:"strategy"`
		Offset      int64  `json:"offset"`
		Cursor      string `json:"cursor"`
		Fingerprint string `json:"fingerprint"`
	}
	decodeOutput(t, out, &state)
	require.Equal(t, "base64", state.Strategy)
	require.Equal(t, `age < 41 OR (age = 41 AND id >= "u7")`, state.Cursor)
	require.Len(t, state.Fingerprint, 64)

	out, err = execute(t, "token", "next", "-c", configPath, "-n", "10", "-t", next.NextPageToken, "-o", "age desc")
	require.NoError(t, err)
	decodeOutput(t, out, &next)
	require.Equal(t, "offset", next.Kind)

	out, err = execute(t, "token", "decode", "-c", configPath, "--", next.NextPageToken)
	require.NoError(t, err)
	decodeOutput(t, out, &state)
	require.Equal(t, int64(10), state.Offset)
	require.Equal(t, `age < 41 OR (age = 41 AND id >= "u7")`, state.Cursor)
}

func TestToken_RecordWithoutOrderingValue(t *testing.T) {
	configPath := writeConfig(t, "")

	out, err := execute(t, "token", "next", "-c", configPath, "-o", "age", "--record", `{"id": "u7"}`)
	require.NoError(t, err)
	var next nextTokenResult
	decodeOutput(t, out, &next)
	require.Equal(t, "offset", next.Kind)
}

func TestTokenDecode_LeadingDash(t *testing.T) {
	key := bytes.Repeat([]byte{9}, pagetoken.KeySize)
	configPath := writeConfig(t, "page_token:\n  strategy: aes256gcm\n  url_safe: true\n  key: "+hex.EncodeToString(key)+"\n")
	codec, err := pagetoken.NewAES256GCM(key, true)
	require.NoError(t, err)

	var token string
	for token == "" || token[0] != '-' {
		token, err = codec.Encode(pagetoken.State{Offset: 15})
		require.NoError(t, err)
	}

	out, err := execute(t, "token", "decode", "-c", configPath, "--", token)
	require.NoError(t, err)
	require.Contains(t, out, `"offset": 15`)

	out, err = executeInput(t, token+"\n", "token", "decode", "-c", configPath)
	require.NoError(t, err)
	require.Contains(t, out, `"offset": 15`)

	_, err = executeInput(t, "  \n", "token", "decode", "-c", configPath)
	require.ErrorContains(t, err, "no token given")
}

func TestKeygen_SaveSwitchesToEncryptedTokens(t *testing.T) {
	configPath := writeConfig(t, "")

	out, err := execute(t, "keygen", "-c", configPath, "--save")
	require.NoError(t, err)
	var gen keygenResult
	decodeOutput(t, out, &gen)
	require.Equal(t, "aes256gcm", gen.Strategy)
	require.Len(t, gen.Key, 64)
	require.Equal(t, configPath, gen.SavedTo)

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "strategy: aes256gcm")
	require.Contains(t, string(data), "primary_ordering_term: id asc")

	out, err = execute(t, "token", "next", "-c", configPath, "-n", "5")
	require.NoError(t, err)
	var next nextTokenResult
	decodeOutput(t, out, &next)

	out, err = execute(t, "token", "decode", "-c", configPath, "--", next.NextPageToken)
	require.NoError(t, err)
	require.Contains(t, out, `"strategy": "aes256gcm"`)
	require.Contains(t, out, `"offset": 5`)
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aipq.yaml")

	out, err := execute(t, "init", path)
	require.NoError(t, err)
	require.Contains(t, out, path)

	_, err = execute(t, "init", path)
	require.Error(t, err)

	_, err = execute(t, "init", path, "--force")
	require.NoError(t, err)
}

func TestInvalidConfiguration(t *testing.T) {
	configPath := writeConfig(t, "dialect: oracle\n")

	_, err := execute(t, "validate", "-c", configPath)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid configuration")
}

func TestMissingSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aipq.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dialect: mysql\n"), 0o600))

	_, err := execute(t, "validate", "-c", path, "-f", "a = 1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "schema_file")
}

func TestInit_ExampleSchema(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aipq.yaml")

	_, err := execute(t, "init", path, "--example-schema", "tasks")
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, "schema.yaml"))

	out, err := execute(t, "validate", "-c", path, "-f", `task.tags:"go" AND user.age > 21`, "-o", "task.priority desc")
	require.NoError(t, err)
	require.Contains(t, out, `"valid": true`)

	_, err = execute(t, "init", filepath.Join(dir, "other.yaml"), "--example-schema", "nope")
	require.Error(t, err)
}
