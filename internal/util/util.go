package util

import "strings"

// MaskSecret obscures a sensitive value for logging, showing only the first
// and last few characters.
func MaskSecret(value string) string {
	if len(value) > 8 {
		return value[:4] + "..." + value[len(value)-4:]
	} else if len(value) > 4 {
		return value[:2] + "..." + value[len(value)-2:]
	} else if len(value) > 2 {
		return value[:1] + "..." + value[len(value)-1:]
	}
	return value
}

// MaskWallet obscures a wallet address for notifications and logs, keeping
// the conventional 0x prefix readable.
func MaskWallet(address string) string {
	trimmed := strings.TrimSpace(address)
	if strings.HasPrefix(strings.ToLower(trimmed), "0x") && len(trimmed) > 10 {
		return trimmed[:6] + "..." + trimmed[len(trimmed)-4:]
	}
	return MaskSecret(trimmed)
}

// NormalizeWallet canonicalizes a wallet address for uniqueness checks.
func NormalizeWallet(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
