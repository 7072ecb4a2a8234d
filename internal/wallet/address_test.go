package wallet

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChecksumVectors(t *testing.T) {
	for _, want := range []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
	} {
		assert.Equal(t, want, Checksum(strings.ToLower(want)))
	}
}

func TestIsAddress(t *testing.T) {
	assert.True(t, IsAddress("0x9ba79e76F4d1B06fA48855DC34e3D6E7bb1BED2B"))
	assert.False(t, IsAddress("9ba79e76F4d1B06fA48855DC34e3D6E7bb1BED2B"))
	assert.False(t, IsAddress("0x123"))
}

func TestKeccakSelector(t *testing.T) {
	assert.Equal(t, "70a08231", hex.EncodeToString(Keccak256([]byte("balanceOf(address)"))[:4]))
}
