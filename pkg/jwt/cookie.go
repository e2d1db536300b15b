package jwt

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/url"
	"strings"
)

// ErrInvalidSignature is returned when a cookie is unsigned or tampered with.
var ErrInvalidSignature = errors.New("invalid cookie signature")

const signedPrefix = "s:"

// CookieSigner signs cookie values in the "s:<value>.<signature>" format used
// by the existing frontend sessions: the signature is the unpadded standard
// base64 of HMAC-SHA256(secret, value).
type CookieSigner struct {
	secret []byte
}

// NewCookieSigner creates a signer; an empty secret falls back to the dev secret.
func NewCookieSigner(secret string) *CookieSigner {
	if secret == "" {
		secret = devSecret
	}
	return &CookieSigner{secret: []byte(secret)}
}

// Sign returns the signed cookie value for value
func (s *CookieSigner) Sign(value string) string {
	return signedPrefix + value + "." + s.signature(value)
}

// CookieValue returns Sign(value) URI-encoded, as it appears in a Cookie
// header. Readers such as gin's Context.Cookie decode it again.
func (s *CookieSigner) CookieValue(value string) string {
	return url.QueryEscape(s.Sign(value))
}

// Unsign verifies a signed cookie value and returns the inner value
func (s *CookieSigner) Unsign(signed string) (string, error) {
	if !strings.HasPrefix(signed, signedPrefix) {
		return "", ErrInvalidSignature
	}
	body := strings.TrimPrefix(signed, signedPrefix)

	dot := strings.LastIndex(body, ".")
	if dot <= 0 {
		return "", ErrInvalidSignature
	}
	value, sig := body[:dot], body[dot+1:]

	if !hmac.Equal([]byte(sig), []byte(s.signature(value))) {
		return "", ErrInvalidSignature
	}
	return value, nil
}

func (s *CookieSigner) signature(value string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(value))
	return base64.RawStdEncoding.EncodeToString(mac.Sum(nil))
}
