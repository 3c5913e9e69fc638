// Package secrets resolves per-host login material. Passwords are stored either
// sealed with NaCl secretbox or referenced through an environment variable, and
// are only opened when a run is about to connect.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/tastythames/ssh-transfer/internal/sshclient"
)

const (
	keySize   = 32
	nonceSize = 24
)

var ErrNoCredentials = errors.New("no credentials for host")

// Credentials is the stored, still-sealed form. Exactly one of EncryptedPassword,
// PasswordEnv or PrivateKeyPath is expected to be set.
type Credentials struct {
	Host              string
	Login             string
	EncryptedPassword string
	PasswordEnv       string
	PrivateKeyPath    string
}

// Box seals and opens passwords with a 32-byte key.
type Box struct {
	key [keySize]byte
}

// NewBox takes a base64 encoded 32-byte key.
func NewBox(encodedKey string) (*Box, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encodedKey))
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	if len(raw) != keySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", keySize, len(raw))
	}
	b := &Box{}
	copy(b.key[:], raw)
	return b, nil
}

// GenerateKey returns a fresh base64 encoded key.
func GenerateKey() (string, error) {
	var k [keySize]byte
	if _, err := io.ReadFull(rand.Reader, k[:]); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(k[:]), nil
}

// Seal returns base64(nonce || box).
func (b *Box) Seal(plain string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", err
	}
	out := secretbox.Seal(nonce[:], []byte(plain), &nonce, &b.key)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (b *Box) Open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(sealed))
	if err != nil {
		return "", fmt.Errorf("decode sealed password: %w", err)
	}
	if len(raw) < nonceSize+secretbox.Overhead {
		return "", errors.New("sealed password too short")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &b.key)
	if !ok {
		return "", errors.New("sealed password does not match key")
	}
	return string(plain), nil
}

// Resolver maps hosts to credentials. It is read-only after construction and
// safe to share between runs.
type Resolver struct {
	byHost map[string]Credentials
	box    *Box
}

// NewResolver indexes creds by host. box may be nil when no password is sealed.
func NewResolver(creds []Credentials, box *Box) *Resolver {
	m := make(map[string]Credentials, len(creds))
	for _, c := range creds {
		m[strings.ToLower(c.Host)] = c
	}
	return &Resolver{byHost: m, box: box}
}

func (r *Resolver) Has(host string) bool {
	_, ok := r.byHost[strings.ToLower(host)]
	return ok
}

// Resolve opens the credentials for host.
func (r *Resolver) Resolve(host string) (sshclient.Auth, error) {
	c, ok := r.byHost[strings.ToLower(host)]
	if !ok {
		return sshclient.Auth{}, fmt.Errorf("%w: %s", ErrNoCredentials, host)
	}

	auth := sshclient.Auth{User: c.Login, KeyPath: c.PrivateKeyPath}
	switch {
	case c.EncryptedPassword != "":
		if r.box == nil {
			return sshclient.Auth{}, fmt.Errorf("encrypted password for %s but no decryption key loaded", host)
		}
		pw, err := r.box.Open(c.EncryptedPassword)
		if err != nil {
			return sshclient.Auth{}, fmt.Errorf("decrypt password for %s: %w", host, err)
		}
		auth.Password = pw
	case c.PasswordEnv != "":
		pw := os.Getenv(c.PasswordEnv)
		if pw == "" {
			return sshclient.Auth{}, fmt.Errorf("empty env var: %s", c.PasswordEnv)
		}
		auth.Password = pw
	case c.PrivateKeyPath == "":
		return sshclient.Auth{}, fmt.Errorf("credentials for %s carry no password or key", host)
	}
	return auth, nil
}
