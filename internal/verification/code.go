package verification

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	// CodeLength is the number of digits in an issued code
	CodeLength = 4

	minCode = 1000
	maxCode = 9999
)

// GenerateCode returns a uniformly random 4-digit code in [1000, 9999].
func GenerateCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(maxCode-minCode+1))
	if err != nil {
		// crypto/rand does not fail on supported platforms
		panic(fmt.Sprintf("failed to generate secure random number: %v", err))
	}
	return fmt.Sprintf("%d", n.Int64()+minCode)
}
