// Package pagetoken encodes and decodes opaque AIP-158 page tokens.
//
// A token carries a State: either an offset or a keyset cursor, plus the
// fingerprint of the request it was issued for. The wire form depends on the
// Codec strategy; every strategy shares the same JSON payload.
package pagetoken

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// ErrInvalidToken is returned for every token that cannot be decoded.
// Decoding never reports why, so forged and corrupted tokens look alike.
var ErrInvalidToken = errors.New("invalid page token")

const payloadVersion = 1

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// State is the decoded content of a page token.
type State struct {
	Offset      int64
	Cursor      string
	Fingerprint []byte
	IssuedAt    time.Time
}

// IsZero reports whether s selects the first page.
func (s State) IsZero() bool {
	return s.Offset == 0 && s.Cursor == ""
}

type payload struct {
	Version     int    `json:"v"`
	Offset      int64  `json:"o,omitempty"`
	Cursor      string `json:"c,omitempty"`
	Fingerprint []byte `json:"f,omitempty"`
	IssuedAt    int64  `json:"t,omitempty"`
}

func marshalState(s State) ([]byte, error) {
	if s.Offset < 0 {
		return nil, fmt.Errorf("negative offset %d", s.Offset)
	}
	p := payload{
		Version:     payloadVersion,
		Offset:      s.Offset,
		Cursor:      s.Cursor,
		Fingerprint: s.Fingerprint,
	}
	if !s.IssuedAt.IsZero() {
		p.IssuedAt = s.IssuedAt.Unix()
	}
	return json.Marshal(p)
}

func unmarshalState(data []byte) (State, error) {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return State{}, ErrInvalidToken
	}
	if p.Version != payloadVersion || p.Offset < 0 {
		return State{}, ErrInvalidToken
	}
	s := State{
		Offset:      p.Offset,
		Cursor:      p.Cursor,
		Fingerprint: p.Fingerprint,
	}
	if p.IssuedAt != 0 {
		s.IssuedAt = time.Unix(p.IssuedAt, 0).UTC()
	}
	return s, nil
}

// Strategy names a token encoding.
type Strategy string

const (
	StrategyPlain     Strategy = "plain"
	StrategyBase64    Strategy = "base64"
	StrategyAES256GCM Strategy = "aes256gcm"
	StrategyRSA       Strategy = "rsa"
)

// ParseStrategy parses a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(s); st {
	case StrategyPlain, StrategyBase64, StrategyAES256GCM, StrategyRSA:
		return st, nil
	case "":
		return StrategyBase64, nil
	default:
		return "", fmt.Errorf("unknown page token strategy %q", s)
	}
}

// Codec converts between State and the opaque token string.
// Implementations are safe for concurrent use.
type Codec interface {
	Strategy() Strategy
	Encode(State) (string, error)
	Decode(token string) (State, error)
}

// Options selects and configures a codec for New.
type Options struct {
	Strategy Strategy
	// URLSafe selects unpadded URL-safe base64 instead of standard base64.
	URLSafe bool
	// Key is the 32-byte AES-256 key for StrategyAES256GCM.
	Key        []byte
	PublicKey  *rsa.PublicKey
	PrivateKey *rsa.PrivateKey
}

// New builds the codec described by opts.
func New(opts Options) (Codec, error) {
	switch opts.Strategy {
	case StrategyPlain:
		return NewPlain(), nil
	case StrategyBase64, "":
		return NewBase64(opts.URLSafe), nil
	case StrategyAES256GCM:
		return NewAES256GCM(opts.Key, opts.URLSafe)
	case StrategyRSA:
		return NewRSA(opts.PublicKey, opts.PrivateKey, opts.URLSafe)
	default:
		return nil, fmt.Errorf("unknown page token strategy %q", opts.Strategy)
	}
}
