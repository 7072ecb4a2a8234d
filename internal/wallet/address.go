package wallet

import (
	"encoding/hex"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

var addressRe = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

func IsAddress(s string) bool {
	return addressRe.MatchString(s)
}

// Keccak256 is the legacy (pre-NIST) Keccak used by Ethereum.
func Keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

// Checksum returns the EIP-55 mixed-case form of a valid address.
func Checksum(addr string) string {
	lower := strings.ToLower(strings.TrimPrefix(addr, "0x"))
	hash := hex.EncodeToString(Keccak256([]byte(lower)))

	out := make([]byte, len(lower))
	for i := 0; i < len(lower); i++ {
		c := lower[i]
		if c >= 'a' && c <= 'f' && hash[i] >= '8' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return "0x" + string(out)
}

func SameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}
