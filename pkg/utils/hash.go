package utils

import (
	"crypto/md5"
	"fmt"
)

// HashString fingerprints content for cache keys and upload dedupe checks.
// Not used for anything security sensitive.
func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}
