// Package token mints access credentials handed out for approved donations.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// Size is the number of random bytes behind every token (192 bits).
const Size = 24

// Length is the printable length of a minted token.
var Length = base64.RawURLEncoding.EncodedLen(Size)

type Minter interface {
	Mint() (string, error)
}

type issuer struct{}

func NewIssuer() Minter {
	return issuer{}
}

// Mint returns a URL-safe token drawn from crypto/rand.
func (issuer) Mint() (string, error) {
	buf := make([]byte, Size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
