package order

import (
	"crypto/rand"
	"fmt"
)

const (
	orderNumberPrefix   = "ORD-"
	orderNumberLength   = 8
	orderNumberAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// newOrderNumber returns ORD- followed by 8 upper-case alphanumerics.
func newOrderNumber() (string, error) {
	buf := make([]byte, orderNumberLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate order number: %w", err)
	}
	for i, b := range buf {
		buf[i] = orderNumberAlphabet[int(b)%len(orderNumberAlphabet)]
	}
	return orderNumberPrefix + string(buf), nil
}
