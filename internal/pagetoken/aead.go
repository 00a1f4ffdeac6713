package pagetoken

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// NonceSize is the AES-GCM nonce length in bytes.
	NonceSize = 12
)

var aesAAD = []byte("aipq/pagetoken/v1")

type aeadCodec struct {
	gcm cipher.AEAD
	enc *base64.Encoding
}

// NewAES256GCM returns a codec that seals the payload with AES-256-GCM.
// Each token uses a fresh random nonce; the token is base64(nonce || sealed).
func NewAES256GCM(key []byte, urlSafe bool) (Codec, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return &aeadCodec{gcm: gcm, enc: encoding(urlSafe)}, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("page token key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return gcm, nil
}

func (*aeadCodec) Strategy() Strategy { return StrategyAES256GCM }

func (c *aeadCodec) Encode(s State) (string, error) {
	data, err := marshalState(s)
	if err != nil {
		return "", err
	}
	sealed, err := seal(c.gcm, data, aesAAD)
	if err != nil {
		return "", err
	}
	return c.enc.EncodeToString(sealed), nil
}

func (c *aeadCodec) Decode(token string) (State, error) {
	raw, err := decodeText(c.enc, token)
	if err != nil {
		return State{}, ErrInvalidToken
	}
	data, err := open(c.gcm, raw, aesAAD)
	if err != nil {
		return State{}, ErrInvalidToken
	}
	return unmarshalState(data)
}

// seal returns nonce || ciphertext.
func seal(gcm cipher.AEAD, plaintext, aad []byte) ([]byte, error) {
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, aad), nil
}

func open(gcm cipher.AEAD, data, aad []byte) ([]byte, error) {
	n := gcm.NonceSize()
	if len(data) < n+gcm.Overhead() {
		return nil, errors.New("ciphertext too short")
	}
	return gcm.Open(nil, data[:n], data[n:], aad)
}

// DeriveKey stretches a shared secret into an AES-256 key with HKDF-SHA256.
// The same secret and info always yield the same key.
func DeriveKey(secret []byte, info string) ([]byte, error) {
	if len(secret) == 0 {
		return nil, errors.New("empty page token secret")
	}
	key := make([]byte, KeySize)
	r := hkdf.New(sha256.New, secret, nil, []byte(info))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}
	return key, nil
}
