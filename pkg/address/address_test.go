package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		address  string
		currency string
		valid    bool
	}{
		{"btc p2pkh", "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", "BTC", true},
		{"btc p2sh", "3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLy", "BTC", true},
		{"bch shares btc prefixes", "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", "BCH", true},
		{"doge", "DH5yaieqoZN36fDVciNyRueRGvGLR3mr7L", "DOGE", true},
		{"ltc", "LbTjMGN7gELw4KbeyQf6cTCq859hD18guE", "LTC", true},
		{"tbtc", "mfWyW5fc9NUj75YAnFgoRLrjxgLDn2MMth", "TBTC", true},
		{"dash", "Xags3HEXJ4G4Uuf8va2eSxLCw2KCyEhiJ7", "DASH", true},
		{"wrong currency prefix", "DH5yaieqoZN36fDVciNyRueRGvGLR3mr7L", "BTC", false},
		{"mainnet address on testnet", "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", "TBTC", false},
		{"mutated checksum", "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNb", "BTC", false},
		{"empty address", "", "BTC", false},
		{"unknown currency", "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", "XMR", false},
		{"garbage", "not-an-address", "BTC", false},
		{"invalid base58 characters", "0OIl", "BTC", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValid(tt.address, tt.currency))
		})
	}
}

func TestIsValidRejectsOffByOneMutations(t *testing.T) {
	canonical := "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"
	for i := 1; i < len(canonical); i++ {
		mutated := []byte(canonical)
		if mutated[i] == '2' {
			mutated[i] = '3'
		} else {
			mutated[i] = '2'
		}
		assert.False(t, IsValid(string(mutated), "BTC"), "mutation at %d accepted", i)
	}
}
