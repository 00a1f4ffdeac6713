package filter

import (
	"fmt"
	"strings"

	"github.com/grafana/regexp"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/zjrosen/aipq/internal/schema"
	"github.com/zjrosen/aipq/internal/value"
)

// Func is an allow-listed filter function.
type Func struct {
	Schema schema.FunctionSchema
	Call   func(args []value.Value) (value.Value, error)
}

// Functions is the allow-list an Evaluator may call, keyed by name.
type Functions map[string]Func

// Schemas returns the declared signatures for registration in a schema.Schema.
func (fs Functions) Schemas() map[string]schema.FunctionSchema {
	out := make(map[string]schema.FunctionSchema, len(fs))
	for name, fn := range fs {
		out[name] = fn.Schema
	}
	return out
}

// Register adds every function of fs to s.
func (fs Functions) Register(s *schema.Schema) {
	for name, fn := range fs {
		s.WithFunction(name, fn.Schema)
	}
}

const regexCacheSize = 256

// patterns caches compiled regex arguments. The cache is shared by all
// evaluators and is safe for concurrent use.
var patterns = mustRegexCache()

func mustRegexCache() *lru.Cache[string, *regexp.Regexp] {
	c, err := lru.New[string, *regexp.Regexp](regexCacheSize)
	if err != nil {
		panic(err)
	}
	return c
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if re, ok := patterns.Get(pattern); ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	patterns.Add(pattern, re)
	return re, nil
}

var stringPredicate = schema.FunctionSchema{
	Args:    []value.Type{value.TypeString, value.TypeString},
	Returns: value.TypeBoolean,
}

// Builtins returns the default allow-list: regex, startsWith and endsWith.
func Builtins() Functions {
	return Functions{
		"regex": {
			Schema: stringPredicate,
			Call: func(args []value.Value) (value.Value, error) {
				text, pattern, err := stringArgs(args)
				if err != nil {
					return value.Value{}, err
				}
				re, err := compilePattern(pattern)
				if err != nil {
					return value.Value{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
				}
				return value.Bool(re.MatchString(text)), nil
			},
		},
		"startsWith": {
			Schema: stringPredicate,
			Call: func(args []value.Value) (value.Value, error) {
				text, prefix, err := stringArgs(args)
				if err != nil {
					return value.Value{}, err
				}
				return value.Bool(strings.HasPrefix(text, prefix)), nil
			},
		},
		"endsWith": {
			Schema: stringPredicate,
			Call: func(args []value.Value) (value.Value, error) {
				text, suffix, err := stringArgs(args)
				if err != nil {
					return value.Value{}, err
				}
				return value.Bool(strings.HasSuffix(text, suffix)), nil
			},
		},
	}
}

func stringArgs(args []value.Value) (string, string, error) {
	if len(args) != 2 {
		return "", "", fmt.Errorf("%w: want 2 arguments, got %d", ErrTypeMismatch, len(args))
	}
	a, okA := args[0].AsString()
	b, okB := args[1].AsString()
	if !okA || !okB {
		return "", "", fmt.Errorf("%w: want string arguments", ErrTypeMismatch)
	}
	return a, b, nil
}
