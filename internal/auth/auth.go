// Package auth derives password digests and session key material from the
// server secret.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	cookieAuthKeyInfo = "redsocial session cookie authentication"
	cookieEncKeyInfo  = "redsocial session cookie encryption"
	cookieKeyLen      = 32
)

// ErrEmptySecret is returned when a Hasher is built without a secret
var ErrEmptySecret = errors.New("server secret is empty")

// Hasher computes password digests keyed with the server secret
type Hasher struct {
	secret []byte
}

// NewHasher returns a Hasher for secret
func NewHasher(secret string) (*Hasher, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Hasher{secret: []byte(secret)}, nil
}

// Digest returns hex(HMAC-SHA256(secret, password))
func (h *Hasher) Digest(password string) string {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(password))
	return hex.EncodeToString(mac.Sum(nil))
}

// CookieKeys derives the authentication and encryption keys of the session
// cookie store. Both are independent of the password digest key.
func (h *Hasher) CookieKeys() (authKey, encKey []byte, err error) {
	if authKey, err = deriveKey(h.secret, cookieAuthKeyInfo); err != nil {
		return nil, nil, err
	}
	if encKey, err = deriveKey(h.secret, cookieEncKeyInfo); err != nil {
		return nil, nil, err
	}
	return authKey, encKey, nil
}

func deriveKey(secret []byte, info string) ([]byte, error) {
	key := make([]byte, cookieKeyLen)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("failed to derive %q key: %w", info, err)
	}
	return key, nil
}
