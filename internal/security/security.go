// Package security covers API key generation, hashing and webhook
// payload signing.
package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const keyPrefix = "nx_"

const keyBytes = 32 // 256 bits of entropy, 64 hex chars

// GenerateAPIKey returns a new merchant API key, "nx_" followed by 64
// hex characters.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, keyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return keyPrefix + hex.EncodeToString(buf), nil
}

// HashAPIKey hashes a plaintext key with SHA-256 so the plaintext is
// never stored.
func HashAPIKey(plainKey string) string {
	sum := sha256.Sum256([]byte(plainKey))
	return hex.EncodeToString(sum[:])
}

// SignWebhookPayload produces the HMAC-SHA256 signature merchants use to
// verify a webhook body, in the "sha256=<hex>" convention.
func SignWebhookPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhookSignature reports whether a signature matches a payload,
// in constant time.
func VerifyWebhookSignature(payload []byte, secret, signature string) bool {
	expected := SignWebhookPayload(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
