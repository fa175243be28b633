package utils

import (
	"crypto/rand"
	"encoding/base64"
	"log"

	"github.com/google/uuid"
)

// GenerateSessionID creates a random URL-safe session handle.
func GenerateSessionID() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		log.Printf("ERROR: Failed to generate random bytes for session ID: %v", err)
		return uuid.NewString()
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// ValidSessionID reports whether v looks like a handle GenerateSessionID (or
// its fallback) could have produced.
func ValidSessionID(v string) bool {
	if _, err := uuid.Parse(v); err == nil {
		return true
	}
	b, err := base64.RawURLEncoding.DecodeString(v)
	return err == nil && len(b) == 32
}
