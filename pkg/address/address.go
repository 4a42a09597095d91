// Package address validates base58check crypto addresses against the
// per-currency version-prefix table the exchanges accept.
package address

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcutil/base58"
)

const decodedLength = 25

// prefixes maps currency codes to the accepted version-byte prefixes
// (hex-encoded).
var prefixes = map[string][]string{
	"BTC":   {"00", "05"},
	"TBTC":  {"6f", "c4"},
	"BCH":   {"00", "05"},
	"TBCH":  {"6f", "c4"},
	"LTC":   {"30", "05", "32"},
	"TLTC":  {"6f", "c4", "3a"},
	"DASH":  {"4c", "10"},
	"TDASH": {"8c", "13"},
	"DOGE":  {"1e", "16"},
	"TDOGE": {"71", "c4"},
}

// IsValid reports whether address is a well-formed base58check address with
// a version prefix accepted for the currency. Currencies outside the table
// are always invalid.
func IsValid(address, currency string) bool {
	if address == "" {
		return false
	}
	accepted, ok := prefixes[currency]
	if !ok {
		return false
	}

	decoded := decode(address)
	if decoded == nil {
		return false
	}
	if !validChecksum(decoded) {
		return false
	}

	prefix := hex.EncodeToString(decoded[:1])
	for _, p := range accepted {
		if prefix == p {
			return true
		}
	}
	return false
}

// decode base58-decodes the address into the fixed 25-byte
// version+payload+checksum layout, left-padding short values.
func decode(address string) []byte {
	raw := base58.Decode(address)
	if len(raw) == 0 || len(raw) > decodedLength {
		return nil
	}
	decoded := make([]byte, decodedLength)
	copy(decoded[decodedLength-len(raw):], raw)
	return decoded
}

func validChecksum(decoded []byte) bool {
	payload := decoded[:decodedLength-4]
	checksum := decoded[decodedLength-4:]

	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])

	for i := 0; i < 4; i++ {
		if checksum[i] != second[i] {
			return false
		}
	}
	return true
}
