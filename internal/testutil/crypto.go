package testutil

import (
	"encoding/base64"
	"testing"

	"github.com/yplo6403/rcsjta-sub005/internal/settings"
)

// TestEncryptionKey is the base64 form of the deterministic key bytes 0..31.
var TestEncryptionKey = func() string {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return base64.StdEncoding.EncodeToString(key)
}()

// GetTestCipher returns a password cipher over TestEncryptionKey.
func GetTestCipher(t *testing.T) *settings.PasswordCipher {
	t.Helper()

	cipher, err := settings.NewPasswordCipher(TestEncryptionKey)
	if err != nil {
		t.Fatalf("Failed to create password cipher: %v", err)
	}
	return cipher
}
