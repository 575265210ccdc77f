package solana

import (
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// PublicKeyLength is the byte length of a Solana account address.
const PublicKeyLength = 32

// ErrInvalidAddress is returned for strings that are not base58 32-byte keys.
var ErrInvalidAddress = errors.New("invalid solana address")

// ValidateAddress checks that s is a base58 encoded 32-byte public key.
func ValidateAddress(s string) error {
	if s == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	decoded, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidAddress, s, err)
	}
	if len(decoded) != PublicKeyLength {
		return fmt.Errorf("%w: %q decodes to %d bytes", ErrInvalidAddress, s, len(decoded))
	}
	return nil
}

// IsValidAddress reports whether s passes ValidateAddress.
func IsValidAddress(s string) bool {
	return ValidateAddress(s) == nil
}
