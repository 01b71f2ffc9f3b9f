package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	classCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	classCodeLength   = 8
	maxCodeAttempts   = 10
)

// GenerateClassCode draws classCodeLength characters uniformly from A-Z0-9.
func GenerateClassCode() (string, error) {
	max := big.NewInt(int64(len(classCodeAlphabet)))
	code := make([]byte, classCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate class code: %w", err)
		}
		code[i] = classCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}
