package rpc

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// TokenAuth checks "Authorization: token <key>:<secret>" headers. A zero
// TokenAuth accepts every request.
type TokenAuth struct {
	Key        string
	SecretHash []byte
}

// NewTokenAuth builds a TokenAuth from a key and bcrypt secret hash.
func NewTokenAuth(key, secretHash string) *TokenAuth {
	return &TokenAuth{Key: strings.TrimSpace(key), SecretHash: []byte(strings.TrimSpace(secretHash))}
}

// Enabled reports whether credentials are enforced.
func (a *TokenAuth) Enabled() bool {
	return a != nil && a.Key != "" && len(a.SecretHash) > 0
}

// Verify validates an Authorization header value.
func (a *TokenAuth) Verify(header string) error {
	if !a.Enabled() {
		return nil
	}
	key, secret, ok := parseToken(header)
	if !ok {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(key), []byte(a.Key)) != 1 {
		return ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword(a.SecretHash, []byte(secret)); err != nil {
		return ErrUnauthorized
	}
	return nil
}

// HashSecret produces the bcrypt hash stored in RPC_API_SECRET_HASH.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// TokenHeader formats credentials for the Authorization header.
func TokenHeader(key, secret string) string {
	return "token " + key + ":" + secret
}

func parseToken(header string) (string, string, bool) {
	header = strings.TrimSpace(header)
	const prefix = "token "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", "", false
	}
	key, secret, ok := strings.Cut(strings.TrimSpace(header[len(prefix):]), ":")
	if !ok || key == "" || secret == "" {
		return "", "", false
	}
	return key, secret, true
}
