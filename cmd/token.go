package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zjrosen/aipq/internal/filter"
	"github.com/zjrosen/aipq/internal/log"
	"github.com/zjrosen/aipq/internal/pagetoken"
	"github.com/zjrosen/aipq/internal/presentation"
)

var (
	tokenRequest requestFlags
	tokenRecord  string
)

// nextTokenResult is the output of token next.
type nextTokenResult struct {
	NextPageToken string `json:"next_page_token"`
	Kind          string `json:"kind"`
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Inspect and issue page tokens",
}

var tokenDecodeCmd = &cobra.Command{
	Use:   "decode [TOKEN]",
	Short: "Decode a page token with the configured codec",
	Long: `Decode a page token and print its offset, cursor, fingerprint and issue
time. Encrypted tokens need the same key material that issued them.

URL-safe tokens may start with '-', so pass them after "--". Without an
argument the token is read from stdin.

Examples:
  aipq token decode -- eyJ2IjoxLCJvIjoyMH0
  echo "$TOKEN" | AIPQ_PAGE_TOKEN_SECRET=s3cret aipq token decode`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		codec, err := cfg.PageToken.Codec()
		if err != nil {
			return err
		}
		token, err := tokenArg(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}
		state, err := codec.Decode(token)
		if err != nil {
			return reportError(out, err)
		}
		return presentation.NewFormatter(out).Format(presentation.FromState(codec.Strategy(), state))
	},
}

// tokenArg returns the positional token, or the first line of stdin.
func tokenArg(stdin io.Reader, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	data, err := io.ReadAll(io.LimitReader(stdin, maxTokenBytes))
	if err != nil {
		return "", fmt.Errorf("reading token from stdin: %w", err)
	}
	token, _, _ := strings.Cut(strings.TrimSpace(string(data)), "\n")
	if token == "" {
		return "", errors.New("no token given")
	}
	return token, nil
}

const maxTokenBytes = 64 << 10

var tokenNextCmd = &cobra.Command{
	Use:   "next",
	Short: "Issue the token for the page after a request",
	Long: `Build the request, then issue the next page token. With --record the token
is a keyset cursor anchored on that record, the first item of the next
page. Without it, or when the record lacks an ordering value, an offset
token is issued.

Examples:
  aipq token next -s schema.yaml -o 'age desc' -n 10 --record '{"age": 41, "id": "u7"}'
  aipq token next -s schema.yaml -f 'age > 3' -n 10 --page-token "$TOKEN"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()
		e, err := newEnv(cfg)
		if err != nil {
			return err
		}

		var record filter.MapResolver
		if tokenRecord != "" {
			if err := json.Unmarshal([]byte(tokenRecord), &record); err != nil {
				return fmt.Errorf("decoding --record: %w", err)
			}
		}

		result, err := issueNext(e, record)
		if err != nil {
			return reportError(out, err)
		}
		return presentation.NewFormatter(out).Format(result)
	},
}

func issueNext(e *env, record filter.MapResolver) (nextTokenResult, error) {
	if tokenRequest.query != "" {
		q, err := e.search.Build(tokenRequest.searchRequest())
		if err != nil {
			return nextTokenResult{}, err
		}
		if record != nil {
			token, err := e.search.NextPageToken(q, record)
			if err == nil {
				return nextTokenResult{NextPageToken: token, Kind: "keyset"}, nil
			}
			if !errors.Is(err, pagetoken.ErrNoCursor) {
				return nextTokenResult{}, err
			}
			log.Debug(log.CatCLI, "Falling back to offset token", "reason", err)
		}
		token, err := e.search.NextOffsetToken(q)
		return nextTokenResult{NextPageToken: token, Kind: "offset"}, err
	}

	q, err := e.list.Build(tokenRequest.list())
	if err != nil {
		return nextTokenResult{}, err
	}
	if record != nil {
		token, err := e.list.NextPageToken(q, record)
		if err == nil {
			return nextTokenResult{NextPageToken: token, Kind: "keyset"}, nil
		}
		if !errors.Is(err, pagetoken.ErrNoCursor) {
			return nextTokenResult{}, err
		}
		log.Debug(log.CatCLI, "Falling back to offset token", "reason", err)
	}
	token, err := e.list.NextOffsetToken(q)
	return nextTokenResult{NextPageToken: token, Kind: "offset"}, err
}

func init() {
	tokenRequest.register(tokenNextCmd, true)
	tokenNextCmd.Flags().StringVar(&tokenRecord, "record", "", "JSON object: the first record of the next page")
	tokenCmd.AddCommand(tokenDecodeCmd, tokenNextCmd)
	rootCmd.AddCommand(tokenCmd)
}
