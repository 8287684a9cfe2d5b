// Package crypto provides the HMAC helpers used by venue request signing and
// AES-GCM encryption for venue API secrets at rest.
package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
)

// HMACSHA256Hex computes HMAC-SHA256 of message using key and returns the
// result hex-encoded. bitFlyer signs timestamp+method+path+body this way.
func HMACSHA256Hex(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// HMACSHA512Hex computes HMAC-SHA512 of message using key and returns the
// result hex-encoded. Zaif signs the form-encoded request body this way.
func HMACSHA512Hex(key []byte, message string) string {
	mac := hmac.New(sha512.New, key)
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}
