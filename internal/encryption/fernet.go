// Package encryption seals credentials at rest with Fernet so provider keys
// never sit in plain text in deployment manifests.
package encryption

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fernet/fernet-go"
)

// ErrInvalidToken is returned when a sealed value cannot be opened with the key.
var ErrInvalidToken = errors.New("invalid sealed value or key")

// Sealer encrypts and decrypts short secrets.
type Sealer struct {
	key *fernet.Key
}

// NewSealer creates a Sealer from a URL-safe base64-encoded 32-byte key.
func NewSealer(keyStr string) (*Sealer, error) {
	keyStr = strings.TrimSpace(keyStr)
	if keyStr == "" {
		return nil, fmt.Errorf("encryption key is empty")
	}

	k, err := fernet.DecodeKey(keyStr)
	if err != nil {
		return nil, fmt.Errorf("decoding fernet key: %w", err)
	}
	return &Sealer{key: k}, nil
}

// LoadKey returns key if set, otherwise the contents of the file at path.
// A missing file yields an empty key.
func LoadKey(key, path string) (string, error) {
	if key = strings.TrimSpace(key); key != "" || path == "" {
		return key, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading encryption key file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// GenerateKey creates a new random key in its encoded form.
func GenerateKey() (string, error) {
	k := new(fernet.Key)
	if err := k.Generate(); err != nil {
		return "", fmt.Errorf("generating key: %w", err)
	}
	return k.Encode(), nil
}

// Seal encrypts plaintext into a Fernet token.
func (s *Sealer) Seal(plaintext string) (string, error) {
	tok, err := fernet.EncryptAndSign([]byte(plaintext), s.key)
	if err != nil {
		return "", fmt.Errorf("sealing: %w", err)
	}
	return string(tok), nil
}

// Open decrypts a token produced by Seal. Tokens do not expire.
func (s *Sealer) Open(token string) (string, error) {
	msg := fernet.VerifyAndDecrypt([]byte(strings.TrimSpace(token)), 0, []*fernet.Key{s.key})
	if msg == nil {
		return "", ErrInvalidToken
	}
	return string(msg), nil
}
