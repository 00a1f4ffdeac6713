package pagetoken

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/binary"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
)

// envelopeVersion prefixes every RSA token so the layout can change later.
const envelopeVersion byte = 1

var rsaLabel = []byte("aipq/pagetoken")

type rsaCodec struct {
	pub  *rsa.PublicKey
	priv *rsa.PrivateKey
	enc  *base64.Encoding
}

// NewRSA returns a hybrid codec: each token is sealed with a fresh AES-256-GCM
// key which is wrapped with RSA-OAEP-SHA256 under pub. Decoding unwraps with
// priv. Either key may be nil for an issue-only or decode-only codec; when
// only priv is given its public half is used for encoding.
//
// Envelope: version(1) || len(wrapped) uint16 || wrapped || nonce || sealed.
func NewRSA(pub *rsa.PublicKey, priv *rsa.PrivateKey, urlSafe bool) (Codec, error) {
	if pub == nil && priv != nil {
		pub = &priv.PublicKey
	}
	if pub == nil && priv == nil {
		return nil, errors.New("rsa page token codec needs a public or private key")
	}
	return &rsaCodec{pub: pub, priv: priv, enc: encoding(urlSafe)}, nil
}

func (*rsaCodec) Strategy() Strategy { return StrategyRSA }

func (c *rsaCodec) Encode(s State) (string, error) {
	if c.pub == nil {
		return "", errors.New("rsa page token codec has no public key")
	}
	data, err := marshalState(s)
	if err != nil {
		return "", err
	}

	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("generating data key: %w", err)
	}
	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, c.pub, key, rsaLabel)
	if err != nil {
		return "", fmt.Errorf("wrapping data key: %w", err)
	}
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	sealed, err := seal(gcm, data, wrapped)
	if err != nil {
		return "", err
	}

	out := make([]byte, 0, 3+len(wrapped)+len(sealed))
	out = append(out, envelopeVersion)
	out = binary.BigEndian.AppendUint16(out, uint16(len(wrapped)))
	out = append(out, wrapped...)
	out = append(out, sealed...)
	return c.enc.EncodeToString(out), nil
}

func (c *rsaCodec) Decode(token string) (State, error) {
	if c.priv == nil {
		return State{}, ErrInvalidToken
	}
	raw, err := decodeText(c.enc, token)
	if err != nil || len(raw) < 3 || raw[0] != envelopeVersion {
		return State{}, ErrInvalidToken
	}
	n := int(binary.BigEndian.Uint16(raw[1:3]))
	if len(raw) < 3+n {
		return State{}, ErrInvalidToken
	}
	wrapped, sealed := raw[3:3+n], raw[3+n:]

	key, err := rsa.DecryptOAEP(sha256.New(), nil, c.priv, wrapped, rsaLabel)
	if err != nil {
		return State{}, ErrInvalidToken
	}
	gcm, err := newGCM(key)
	if err != nil {
		return State{}, ErrInvalidToken
	}
	// the wrapped key is bound as additional data
	data, err := open(gcm, sealed, wrapped)
	if err != nil {
		return State{}, ErrInvalidToken
	}
	return unmarshalState(data)
}

// GenerateRSAKey generates a private key and returns it with its PKCS#8 PEM encoding.
func GenerateRSAKey(bits int) (*rsa.PrivateKey, []byte, error) {
	if bits < 2048 {
		return nil, nil, fmt.Errorf("rsa key size %d is below 2048 bits", bits)
	}
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, nil, fmt.Errorf("generating rsa key: %w", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling rsa key: %w", err)
	}
	return priv, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// MarshalRSAPublicKeyPEM encodes pub as a PKIX "PUBLIC KEY" block.
func MarshalRSAPublicKeyPEM(pub *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("marshaling rsa public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// ParseRSAPrivateKeyPEM parses a PKCS#8 or PKCS#1 RSA private key.
func ParseRSAPrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	if block.Type == "RSA PRIVATE KEY" {
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not RSA")
	}
	return priv, nil
}

// ParseRSAPublicKeyPEM parses a PKIX RSA public key.
func ParseRSAPublicKeyPEM(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}
	return pub, nil
}
