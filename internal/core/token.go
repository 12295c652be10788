package core

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// DefaultTokenBytes gives 32 hex characters per room or share token.
const DefaultTokenBytes = 16

// TokenGenerator produces room tokens, share tokens and message ids.
// Room and share tokens are access capabilities: whoever holds one can join
// the room and read its history.
type TokenGenerator interface {
	GenerateToken(byteLength int) (string, error)
	GenerateMessageID() string
}

// CryptoTokens draws from crypto/rand unless Source is set.
type CryptoTokens struct {
	Source io.Reader
}

func NewCryptoTokens() *CryptoTokens {
	return &CryptoTokens{Source: rand.Reader}
}

// GenerateToken returns byteLength random bytes as lowercase hex.
func (g *CryptoTokens) GenerateToken(byteLength int) (string, error) {
	if byteLength <= 0 {
		return "", fmt.Errorf("token length must be positive, got %d", byteLength)
	}
	src := g.Source
	if src == nil {
		src = rand.Reader
	}
	buf := make([]byte, byteLength)
	if _, err := io.ReadFull(src, buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func (g *CryptoTokens) GenerateMessageID() string {
	return uuid.NewString()
}
