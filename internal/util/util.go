// Package util holds small helpers shared across packages.
package util

import "strings"

// MaskSecret obscures a credential for logging, keeping at most four characters on each end.
func MaskSecret(secret string) string {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return ""
	}
	keep := len(secret) / 4
	if keep > 4 {
		keep = 4
	}
	if keep == 0 {
		return "***"
	}
	return secret[:keep] + "..." + secret[len(secret)-keep:]
}
