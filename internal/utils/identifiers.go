package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// txHashTag is the validator rule for a 0x-prefixed 32-byte hex hash.
const txHashTag = "len=66,startswith=0x,hexadecimal"

var (
	validate    = validator.New()
	handleStrip = regexp.MustCompile(`[^a-z0-9_]`)
)

// IsAddress reports whether s is a 20-byte hex EVM address.
func IsAddress(s string) bool {
	return validate.Var(s, "required,eth_addr") == nil
}

// IsTxHash reports whether s is a 32-byte hex transaction hash.
func IsTxHash(s string) bool {
	return validate.Var(s, "required,"+txHashTag) == nil
}

// NormalizeAddress validates and lowercases an address.
func NormalizeAddress(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !IsAddress(s) {
		return "", fmt.Errorf("invalid address %q", s)
	}
	return strings.ToLower(s), nil
}

// NormalizeHandle prefixes "@" when missing.
func NormalizeHandle(handle string) string {
	handle = strings.TrimSpace(handle)
	if handle == "" || strings.HasPrefix(handle, "@") {
		return handle
	}
	return "@" + handle
}

// HandleFromName derives a handle from a display name, falling back to the
// local part of an email address.
func HandleFromName(displayName, email string) string {
	base := strings.ToLower(strings.ReplaceAll(displayName, " ", ""))
	base = handleStrip.ReplaceAllString(base, "")
	if base == "" {
		local, _, _ := strings.Cut(email, "@")
		base = handleStrip.ReplaceAllString(strings.ToLower(local), "")
	}
	if base == "" {
		base = "influencer"
	}
	return "@" + base
}

// WithRandomSuffix appends "_XXXX" where XXXX is a random 4-digit number,
// used when a derived handle is already taken.
func WithRandomSuffix(handle string) (string, error) {
	suffix, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("failed to generate random suffix: %w", err)
	}
	return fmt.Sprintf("%s_%04d", handle, suffix.Int64()), nil
}

// DefaultSymbol builds a ticker from a token name: spaces removed, first five
// characters, uppercased.
func DefaultSymbol(name string) string {
	compact := strings.ReplaceAll(name, " ", "")
	if r := []rune(compact); len(r) > 5 {
		compact = string(r[:5])
	}
	return strings.ToUpper(compact)
}

// MockTxHash returns a random, well-formed transaction hash for pledges made
// without an on-chain transfer.
func MockTxHash() string {
	a := uuid.New()
	b := uuid.New()
	return "0x" + hex.EncodeToString(a[:]) + hex.EncodeToString(b[:])
}
