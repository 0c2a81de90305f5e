// Package checksum implements the hash and signature recipes the supported
// payment providers use to authenticate callbacks. Each provider dictates its
// own canonical string and output encoding; the exact formatting is part of
// the wire contract and covered by fixture tests.
package checksum

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"sort"
	"strings"
)

// MD5Hex returns the lowercase hex MD5 digest of input.
func MD5Hex(input string) string {
	sum := md5.Sum([]byte(input))
	return hex.EncodeToString(sum[:])
}

// MD5SortedPairs joins key=value pairs sorted by key with commas and returns
// the MD5 hex digest of the result.
func MD5SortedPairs(pairs map[string]string) string {
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+pairs[k])
	}
	return MD5Hex(strings.Join(parts, ","))
}

// SHA256Hex returns the lowercase hex SHA-256 digest of input.
func SHA256Hex(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// SHA256Base64 returns the base64 SHA-256 digest of input.
func SHA256Base64(input string) string {
	sum := sha256.Sum256([]byte(input))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// HMACSHA256Hex returns the uppercase hex HMAC-SHA256 of message under
// secret. Providers that use this recipe compare case-insensitively.
func HMACSHA256Hex(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}

// HMACSHA256Base64 returns the base64 HMAC-SHA256 of message under secret.
func HMACSHA256Base64(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// HMACSHA256Base64HexKey returns the base64 HMAC-SHA256 of message under a
// hex-encoded key. Odd-length keys get a zero nibble appended before
// decoding; an undecodable key yields a MAC no supplied signature matches.
func HMACSHA256Base64HexKey(hexKey, message string) string {
	if len(hexKey)%2 == 1 {
		hexKey += "0"
	}
	key, _ := hex.DecodeString(hexKey)
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Equal compares two digests case-insensitively in constant time.
func Equal(supplied, computed string) bool {
	a := []byte(strings.ToLower(supplied))
	b := []byte(strings.ToLower(computed))
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
