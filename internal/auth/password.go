package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor. Cost 12 takes roughly 250ms on a
// modern server: negligible for one login, expensive for a brute-force run.
const defaultCost = 12

// maxPinBytes is bcrypt's input limit. Longer input is silently truncated
// by bcrypt, so it is rejected instead.
const maxPinBytes = 72

// ErrPinMismatch is returned by Verify when the PIN does not match the hash.
var ErrPinMismatch = errors.New("auth: invalid pin")

// PasswordService hashes and verifies PINs with bcrypt. The cost is a
// field so tests can drop it to the minimum.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the default cost (12).
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest creates a PasswordService with a custom cost.
// Other packages' tests pass bcrypt.MinCost (4). Never use it in production.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash returns a self-contained bcrypt hash of pin, salt and cost included:
//
//	$2a$12$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy
func (p *PasswordService) Hash(pin string) (string, error) {
	if len(pin) > maxPinBytes {
		return "", fmt.Errorf("auth: pin must be %d bytes or fewer", maxPinBytes)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(pin), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing pin: %w", err)
	}

	return string(hashed), nil
}

// Verify returns nil when pin matches hash and ErrPinMismatch when it does
// not. bcrypt compares in constant time.
func (p *PasswordService) Verify(hash, pin string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPinMismatch
		}
		return fmt.Errorf("auth: comparing pin hash: %w", err)
	}
	return nil
}
