package utils

import (
	"crypto/md5"
	"fmt"
)

// HashString returns the hex MD5 of the input. Used to derive stable document
// IDs from article links.
func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}
