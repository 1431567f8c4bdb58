package password

import (
	"errors"
	"strings"
)

// Hasher is implemented by [Argon2] and [Bcrypt].
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	NeedsRehash(encodedHash string) (bool, error)
	Algorithm() string
}

const (
	// AlgorithmArgon2id is an exported constant or variable used by the identity engine.
	AlgorithmArgon2id = "argon2id"
	// AlgorithmBcrypt is an exported constant or variable used by the identity engine.
	AlgorithmBcrypt = "bcrypt"
)

// ErrUnknownHash is an exported constant or variable used by the identity engine.
var ErrUnknownHash = errors.New("unrecognized password hash format")

// Detect maps a stored hash to its algorithm identifier so callers holding
// a mixed estate (for example bcrypt hashes imported from an older system)
// can route verification to the right [Hasher].
func Detect(encodedHash string) (string, error) {
	switch {
	case strings.HasPrefix(encodedHash, "$argon2id$"):
		return AlgorithmArgon2id, nil
	case strings.HasPrefix(encodedHash, "$2a$"),
		strings.HasPrefix(encodedHash, "$2b$"),
		strings.HasPrefix(encodedHash, "$2y$"):
		return AlgorithmBcrypt, nil
	default:
		return "", ErrUnknownHash
	}
}
