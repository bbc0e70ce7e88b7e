package sessions

import (
	"crypto/sha256"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

// hmacSigner signs and verifies compact HS256 tokens bound to one audience.
type hmacSigner struct {
	secret   []byte
	audience string
}

// newHMACSigner derives a purpose-specific key from the master secret so a
// token minted for one audience never verifies for another.
func newHMACSigner(masterSecret, audience string) (*hmacSigner, error) {
	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(masterSecret), nil, []byte("strava-broker/"+audience))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive %s key: %w", audience, err)
	}
	return &hmacSigner{secret: key, audience: audience}, nil
}

func (h *hmacSigner) Sign(subject string, issuedAt time.Time, lifetime time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Audience:  jwt.ClaimStrings{h.audience},
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(lifetime)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token with HMAC: %w", err)
	}
	return signed, nil
}

// Verify returns the subject of a valid, unexpired token.
func (h *hmacSigner) Verify(token string, now time.Time) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, h.getVerificationKey,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(h.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return claims.Subject, nil
}

func (h *hmacSigner) getVerificationKey(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return h.secret, nil
}
