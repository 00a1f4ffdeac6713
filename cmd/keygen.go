package cmd

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zjrosen/aipq/internal/config"
	"github.com/zjrosen/aipq/internal/log"
	"github.com/zjrosen/aipq/internal/pagetoken"
	"github.com/zjrosen/aipq/internal/presentation"
)

var (
	keygenStrategy string
	keygenBits     int
	keygenOut      string
	keygenSave     bool
)

// keygenResult is the output of keygen. Key is only set for aes256gcm.
type keygenResult struct {
	Strategy       string `json:"strategy"`
	Key            string `json:"key,omitempty"`
	PrivateKeyFile string `json:"private_key_file,omitempty"`
	PublicKeyFile  string `json:"public_key_file,omitempty"`
	SavedTo        string `json:"saved_to,omitempty"`
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate page token key material",
	Long: `Generate a random AES-256 key (printed as hex) or an RSA key pair (written
as PEM files). With --save the page_token section of the config file is
updated to use the new material; other sections and comments are kept.

Examples:
  aipq keygen
  aipq keygen --strategy rsa --bits 3072 --out keys --save`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		strategy, err := pagetoken.ParseStrategy(keygenStrategy)
		if err != nil {
			return err
		}

		pt := config.PageTokenConfig{
			Strategy: string(strategy),
			URLSafe:  cfg.PageToken.URLSafe,
			KeyInfo:  cfg.PageToken.KeyInfo,
		}
		result := keygenResult{Strategy: string(strategy)}

		switch strategy {
		case pagetoken.StrategyAES256GCM:
			key := make([]byte, pagetoken.KeySize)
			if _, err := rand.Read(key); err != nil {
				return fmt.Errorf("generating key: %w", err)
			}
			pt.Key = hex.EncodeToString(key)
			result.Key = pt.Key
		case pagetoken.StrategyRSA:
			pt.PrivateKeyFile, pt.PublicKeyFile, err = writeRSAKeys(keygenOut, keygenBits)
			if err != nil {
				return err
			}
			result.PrivateKeyFile, result.PublicKeyFile = pt.PrivateKeyFile, pt.PublicKeyFile
		default:
			return fmt.Errorf("strategy %q has no key material", strategy)
		}

		if keygenSave {
			path := configPath()
			if err := config.SavePageToken(path, pt); err != nil {
				return err
			}
			result.SavedTo = path
		}
		return presentation.NewFormatter(cmd.OutOrStdout()).Format(result)
	},
}

func writeRSAKeys(dir string, bits int) (string, string, error) {
	priv, privPEM, err := pagetoken.GenerateRSAKey(bits)
	if err != nil {
		return "", "", err
	}
	pubPEM, err := pagetoken.MarshalRSAPublicKeyPEM(&priv.PublicKey)
	if err != nil {
		return "", "", err
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", "", fmt.Errorf("creating key directory: %w", err)
	}
	privPath := filepath.Join(dir, "pagetoken.pem")
	pubPath := filepath.Join(dir, "pagetoken.pub.pem")
	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		return "", "", fmt.Errorf("writing private key: %w", err)
	}
	if err := os.WriteFile(pubPath, pubPEM, 0o644); err != nil { //nolint:gosec // G306: public key
		return "", "", fmt.Errorf("writing public key: %w", err)
	}
	log.Info(log.CatCLI, "Wrote RSA key pair", "private", privPath, "public", pubPath, "bits", bits)
	return privPath, pubPath, nil
}

func init() {
	keygenCmd.Flags().StringVar(&keygenStrategy, "strategy", string(pagetoken.StrategyAES256GCM), "aes256gcm or rsa")
	keygenCmd.Flags().IntVar(&keygenBits, "bits", 3072, "RSA modulus size")
	keygenCmd.Flags().StringVar(&keygenOut, "out", ".", "directory for RSA PEM files")
	keygenCmd.Flags().BoolVar(&keygenSave, "save", false, "update the page_token section of the config file")
	rootCmd.AddCommand(keygenCmd)
}
