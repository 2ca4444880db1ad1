package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign returns the hex HMAC-SHA256 of "gatewayOrderID|paymentID", the value
// the gateway hands back to the browser after a successful payment.
func Sign(secret, gatewayOrderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares in constant time. Empty inputs never verify.
func VerifySignature(secret, gatewayOrderID, paymentID, signature string) bool {
	if secret == "" || gatewayOrderID == "" || paymentID == "" || signature == "" {
		return false
	}
	expected := Sign(secret, gatewayOrderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}
