// AngelaMos | 2026
// security.go

package core

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// argonCost is the work factor new hashes are written with. Stored hashes
// with any other cost are upgraded on the next successful login.
var argonCost = argonParams{memory: 64 * 1024, time: 1, threads: 4, keyLen: 32}

const saltBytes = 16

var errHashFormat = errors.New("unrecognised password hash")

type argonParams struct {
	memory  uint32
	time    uint32
	threads uint8
	keyLen  uint32
}

// phcHash is a parsed "$argon2id$v=19$m=..,t=..,p=..$salt$key" string.
type phcHash struct {
	params argonParams
	salt   []byte
	key    []byte
}

func (h phcHash) String() string {
	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.params.memory, h.params.time, h.params.threads,
		b64.EncodeToString(h.salt), b64.EncodeToString(h.key))
}

func derive(password string, salt []byte, p argonParams) []byte {
	return argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, p.keyLen)
}

func parsePHC(encoded string) (phcHash, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return phcHash{}, errHashFormat
	}

	if fields[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return phcHash{}, fmt.Errorf("argon2 %s: %w", fields[2], errHashFormat)
	}

	var h phcHash
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d",
		&h.params.memory, &h.params.time, &h.params.threads); err != nil {
		return phcHash{}, fmt.Errorf("argon2 params: %w", errHashFormat)
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(fields[4]); err != nil {
		return phcHash{}, fmt.Errorf("argon2 salt: %w", errHashFormat)
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(fields[5]); err != nil {
		return phcHash{}, fmt.Errorf("argon2 key: %w", errHashFormat)
	}
	h.params.keyLen = uint32(len(h.key)) //nolint:gosec // argon2 keys are tiny

	return h, nil
}

func isBcrypt(encoded string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(encoded, prefix) {
			return true
		}
	}
	return false
}

func HashPassword(password string) (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("password salt: %w", err)
	}

	return phcHash{params: argonCost, salt: salt, key: derive(password, salt, argonCost)}.String(), nil
}

// VerifyPassword checks argon2id hashes and the bcrypt hashes of accounts
// imported from the previous system.
func VerifyPassword(password, encoded string) (bool, error) {
	if isBcrypt(encoded) {
		switch err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password)); {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, fmt.Errorf("bcrypt: %w", err)
		}
	}

	h, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}

	return subtle.ConstantTimeCompare(h.key, derive(password, h.salt, h.params)) == 1, nil
}

// outdated reports whether a verified hash should be rewritten at argonCost.
func outdated(encoded string) bool {
	if isBcrypt(encoded) {
		return true
	}
	h, err := parsePHC(encoded)
	return err != nil || h.params != argonCost
}

// VerifyPasswordWithRehash also returns a replacement hash when the stored
// one is bcrypt or uses a different argon2 cost. A failed rehash is dropped;
// the login itself still succeeds.
func VerifyPasswordWithRehash(password, encoded string) (bool, string, error) {
	ok, err := VerifyPassword(password, encoded)
	if err != nil || !ok || !outdated(encoded) {
		return ok, "", err
	}

	upgraded, err := HashPassword(password)
	if err != nil {
		return true, "", nil //nolint:nilerr // login already verified
	}
	return true, upgraded, nil
}

var decoyHash = sync.OnceValue(func() string {
	h, err := HashPassword("sonda-decoy")
	if err != nil {
		panic(fmt.Sprintf("decoy password hash: %v", err))
	}
	return h
})

// VerifyPasswordTimingSafe derives a key even for accounts without a hash, so
// an unknown email costs the same time as a wrong password.
func VerifyPasswordTimingSafe(password string, encoded *string) (bool, string, error) {
	if encoded == nil || *encoded == "" {
		_, _ = VerifyPassword(password, decoyHash()) //nolint:errcheck // timing only
		return false, "", nil
	}
	return VerifyPasswordWithRehash(password, *encoded)
}

// GenerateSecureToken returns n random bytes, URL-safe base64 encoded.
func GenerateSecureToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("random token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(buf), nil
}

// HashToken is the lookup key stored for opaque tokens.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
