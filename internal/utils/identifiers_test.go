package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAddress(t *testing.T) {
	got, err := NormalizeAddress(" 0xABCDEFabcdef0123456789012345678901234567 ")
	require.NoError(t, err)
	assert.Equal(t, "0xabcdefabcdef0123456789012345678901234567", got)

	for _, bad := range []string{"", "0x123", "abcdefabcdef0123456789012345678901234567", "0xZZCDEFabcdef0123456789012345678901234567"} {
		_, err := NormalizeAddress(bad)
		assert.Error(t, err, bad)
	}
}

func TestIsTxHash(t *testing.T) {
	good := "0x" + strings.Repeat("ab", 32)
	assert.True(t, IsTxHash(good))
	assert.True(t, IsTxHash("0x"+strings.Repeat("AB", 32)))

	for _, bad := range []string{
		"",
		"0x1234",
		strings.Repeat("ab", 33),
		"0x" + strings.Repeat("zz", 32),
		"0x" + strings.Repeat("ab", 33),
	} {
		assert.False(t, IsTxHash(bad), bad)
	}
}

func TestIsAddressMixedCase(t *testing.T) {
	// Mixed case is accepted without an EIP-55 checksum check.
	assert.True(t, IsAddress("0xAbCdEf0123456789aBcDeF0123456789AbCdEf01"))
	assert.False(t, IsAddress("0XAbCdEf0123456789aBcDeF0123456789AbCdEf01"))
}

func TestNormalizeHandle(t *testing.T) {
	assert.Equal(t, "@alice", NormalizeHandle("alice"))
	assert.Equal(t, "@alice", NormalizeHandle("@alice"))
	assert.Equal(t, "", NormalizeHandle("  "))
}

func TestHandleFromName(t *testing.T) {
	assert.Equal(t, "@cryptoqueen", HandleFromName("Crypto Queen", "q@example.com"))
	assert.Equal(t, "@bobsmith", HandleFromName("", "bob.smith@example.com"))
	assert.Equal(t, "@influencer", HandleFromName("", ""))
}

func TestWithRandomSuffix(t *testing.T) {
	h, err := WithRandomSuffix("@alice")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(h, "@alice_"))
	assert.Len(t, h, len("@alice_0000"))
}

func TestDefaultSymbol(t *testing.T) {
	assert.Equal(t, "CRYPT", DefaultSymbol("Crypto Queen Token"))
	assert.Equal(t, "AB", DefaultSymbol("a b"))
}

func TestMockTxHash(t *testing.T) {
	h := MockTxHash()
	assert.True(t, IsTxHash(h), h)
	assert.NotEqual(t, h, MockTxHash())
}
