package payment

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
)

// Signature computes the gateway notification signature:
// sha512 over the concatenation of order ID, status code, gross amount,
// and the merchant server key.
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// VerifySignature checks a notification signature in constant time.
func VerifySignature(orderID, statusCode, grossAmount, serverKey, signature string) bool {
	expected := Signature(orderID, statusCode, grossAmount, serverKey)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
