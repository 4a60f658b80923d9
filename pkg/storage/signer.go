package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrTokenInvalid covers malformed tokens and signature mismatches.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned for well-formed tokens past their expiry.
	ErrTokenExpired = errors.New("token expired")
)

// Signer issues HMAC-SHA256 tokens binding a subject and payload to an expiry.
// Tokens have the form subject.expiry.base64(payload).signature.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner constructs a signer with the provided secret and TTL.
func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL returns how long issued tokens stay valid.
func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// Sign returns a token for subject and payload.
func (s *Signer) Sign(subject, payload string) (string, time.Time, error) {
	if subject == "" || strings.Contains(subject, ".") {
		return "", time.Time{}, fmt.Errorf("subject must be non-empty and dot free")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	exp := strconv.FormatInt(expiresAt.Unix(), 10)
	encoded := base64.RawURLEncoding.EncodeToString([]byte(payload))
	sig := s.signature(subject, exp, encoded)
	return strings.Join([]string{subject, exp, encoded, sig}, "."), expiresAt, nil
}

// Verify checks the signature and expiry and returns the embedded values.
func (s *Signer) Verify(token string) (subject, payload string, expiresAt time.Time, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return "", "", time.Time{}, ErrTokenInvalid
	}
	subject, exp, encoded, sig := parts[0], parts[1], parts[2], parts[3]

	expected := s.signature(subject, exp, encoded)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return "", "", time.Time{}, ErrTokenInvalid
	}
	expUnix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return "", "", time.Time{}, ErrTokenInvalid
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", time.Time{}, ErrTokenInvalid
	}
	expiresAt = time.Unix(expUnix, 0)
	if s.now().After(expiresAt) {
		return subject, string(raw), expiresAt, ErrTokenExpired
	}
	return subject, string(raw), expiresAt, nil
}

func (s *Signer) signature(subject, exp, encoded string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(subject + "|" + exp + "|" + encoded))
	return hex.EncodeToString(mac.Sum(nil))
}
