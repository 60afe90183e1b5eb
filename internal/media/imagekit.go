// Package media integrates with the image CDN used for hosting user-uploaded
// study material. The backend never proxies image bytes; it only mints the
// client-side upload authentication parameters the CDN's SDK expects:
// a one-time token, an expiry, and an HMAC-SHA1 signature over token+expire
// computed with the account's private key.
package media

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ErrNotConfigured is returned when no private key is available.
var ErrNotConfigured = errors.New("media: image cdn not configured")

// defaultTokenTTL is how long minted upload parameters stay valid.
const defaultTokenTTL = 30 * time.Minute

// AuthParams is the credential triple consumed by the CDN upload widget.
type AuthParams struct {
	Token     string `json:"token"`
	Expire    int64  `json:"expire"`
	Signature string `json:"signature"`
}

// Signer mints upload authentication parameters.
type Signer struct {
	privateKey string
	ttl        time.Duration

	// now is swappable for tests.
	now func() time.Time
}

// NewSigner creates a Signer. An empty privateKey produces a Signer whose
// Mint always fails with ErrNotConfigured.
func NewSigner(privateKey string) *Signer {
	return &Signer{
		privateKey: privateKey,
		ttl:        defaultTokenTTL,
		now:        time.Now,
	}
}

// Configured reports whether a private key is present.
func (s *Signer) Configured() bool { return s.privateKey != "" }

// Mint returns fresh upload parameters: a UUID token, a unix expiry, and the
// hex-encoded HMAC-SHA1 of token+expire under the private key.
func (s *Signer) Mint() (*AuthParams, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}

	token := uuid.NewString()
	expire := s.now().Add(s.ttl).Unix()

	mac := hmac.New(sha1.New, []byte(s.privateKey))
	mac.Write([]byte(token + strconv.FormatInt(expire, 10)))

	return &AuthParams{
		Token:     token,
		Expire:    expire,
		Signature: hex.EncodeToString(mac.Sum(nil)),
	}, nil
}
