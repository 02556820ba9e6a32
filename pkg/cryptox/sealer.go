package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sealer encrypts private key material at rest with AES-256-GCM.
// Sealed output is nonce || ciphertext || tag.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives a 256-bit key from material with SHA-256.
func NewSealer(material []byte) (*Sealer, error) {
	if len(material) == 0 {
		return nil, errors.New("cryptox: empty master key")
	}
	key := sha256.Sum256(material)

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("cryptox: new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptox: new gcm: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// LoadSealer reads master key material from path.
func LoadSealer(path string) (*Sealer, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("cryptox: read master key: %w", err)
	}
	return NewSealer([]byte(strings.TrimSpace(string(data))))
}

// NewEphemeralSealer returns a Sealer keyed with random bytes. Anything it
// seals is unreadable after the process exits.
func NewEphemeralSealer() (*Sealer, error) {
	material := make([]byte, 32)
	if _, err := rand.Read(material); err != nil {
		return nil, fmt.Errorf("cryptox: generate master key: %w", err)
	}
	return NewSealer(material)
}

func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("cryptox: read nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	n := s.aead.NonceSize()
	if len(sealed) < n+s.aead.Overhead() {
		return nil, errors.New("cryptox: sealed data too short")
	}
	plaintext, err := s.aead.Open(nil, sealed[:n], sealed[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("cryptox: open sealed data: %w", err)
	}
	return plaintext, nil
}
