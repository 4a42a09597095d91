// Package sign implements the HMAC-SHA512 request signing both exchange
// dialects use.
package sign

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
)

// Message returns the lowercase hex HMAC-SHA512 digest of message under key.
func Message(message, key string) string {
	mac := hmac.New(sha512.New, []byte(key))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// Equal reports whether two signatures match in constant time.
func Equal(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}
