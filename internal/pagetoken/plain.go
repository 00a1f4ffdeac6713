package pagetoken

import (
	"encoding/base64"
	"strings"
)

type plainCodec struct{}

// NewPlain returns a codec whose tokens are the readable JSON payload.
// Tokens are trivially forgeable; use it for debugging only.
func NewPlain() Codec { return plainCodec{} }

func (plainCodec) Strategy() Strategy { return StrategyPlain }

func (plainCodec) Encode(s State) (string, error) {
	data, err := marshalState(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (plainCodec) Decode(token string) (State, error) {
	return unmarshalState([]byte(token))
}

type base64Codec struct {
	enc *base64.Encoding
}

// NewBase64 returns a codec that base64-encodes the JSON payload.
func NewBase64(urlSafe bool) Codec {
	return base64Codec{enc: encoding(urlSafe)}
}

// encoding returns a strict alphabet so every token has exactly one textual
// form: non-zero trailing bits are rejected.
func encoding(urlSafe bool) *base64.Encoding {
	if urlSafe {
		return base64.RawURLEncoding.Strict()
	}
	return base64.StdEncoding.Strict()
}

// decodeText decodes token with enc. The decoder skips CR and LF, so they
// are rejected up front.
func decodeText(enc *base64.Encoding, token string) ([]byte, error) {
	if strings.ContainsAny(token, "\r\n") {
		return nil, ErrInvalidToken
	}
	data, err := enc.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return data, nil
}

func (base64Codec) Strategy() Strategy { return StrategyBase64 }

func (c base64Codec) Encode(s State) (string, error) {
	data, err := marshalState(s)
	if err != nil {
		return "", err
	}
	return c.enc.EncodeToString(data), nil
}

func (c base64Codec) Decode(token string) (State, error) {
	data, err := decodeText(c.enc, token)
	if err != nil {
		return State{}, err
	}
	return unmarshalState(data)
}
