// Package cryptox derives login credentials on the client so that the server
// only ever stores and compares verifiers, never passwords.
package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"

	"github.com/dmitrijs2005/useraccounts/internal/common"
	"golang.org/x/crypto/argon2"
)

// SaltSize is the length of freshly generated salts in bytes.
const SaltSize = 16

const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

// NewSalt returns SaltSize random bytes.
func NewSalt() []byte {
	return common.GenerateRandByteArray(SaltSize)
}

// DeriveKey stretches password with argon2id.
func DeriveKey(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

// MakeVerifier hashes a derived key into the value sent to the server.
func MakeVerifier(key []byte) []byte {
	sum := sha256.Sum256(key)
	return sum[:]
}

// Credential derives the verifier for password under salt and wipes the
// intermediate key.
func Credential(password string, salt []byte) []byte {
	key := DeriveKey([]byte(password), salt)
	defer common.WipeByteArray(key)
	return MakeVerifier(key)
}

// VerifiersEqual compares two verifiers in constant time.
func VerifiersEqual(a, b []byte) bool {
	return len(a) > 0 && subtle.ConstantTimeCompare(a, b) == 1
}
