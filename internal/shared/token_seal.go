package shared

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

var errSealedTokenInvalid = errors.New("sealed token invalid")

// tokenSealer encrypts bearer tokens before they are written to Redis.
type tokenSealer struct {
	aead cipher.AEAD
}

func newTokenSealer(secret []byte) *tokenSealer {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte("console session token v1")), key); err != nil {
		panic("shared: derive session key: " + err.Error())
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		panic("shared: session cipher: " + err.Error())
	}
	return &tokenSealer{aead: aead}
}

func (t *tokenSealer) seal(token string) (string, error) {
	nonce := make([]byte, t.aead.NonceSize(), t.aead.NonceSize()+len(token)+t.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(t.aead.Seal(nonce, nonce, []byte(token), nil)), nil
}

func (t *tokenSealer) open(sealed string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return "", err
	}
	if len(raw) < t.aead.NonceSize() {
		return "", errSealedTokenInvalid
	}
	nonce, ciphertext := raw[:t.aead.NonceSize()], raw[t.aead.NonceSize():]
	plain, err := t.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", errSealedTokenInvalid
	}
	return string(plain), nil
}
