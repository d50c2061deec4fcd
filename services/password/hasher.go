// Package password hashes and verifies account secrets.
package password

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
)

// Algorithm names accepted by New
const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// DefaultBcryptCost is the cost used by existing account hashes
const DefaultBcryptCost = 10

var (
	// ErrUnknownHashFormat is returned when a stored hash was produced by no supported algorithm
	ErrUnknownHashFormat = errors.New("unknown password hash format")

	// ErrEmptyHash is returned when verifying against an account without a local secret
	ErrEmptyHash = errors.New("account has no local password")
)

// DefaultArgon2idParams are the argon2id parameters used for new hashes
var DefaultArgon2idParams = &argon2id.Params{
	Memory:      19 * 1024,
	Iterations:  2,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// Hasher hashes secrets and verifies them against stored hashes
type Hasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hashed string) (bool, error)
}

// BcryptHasher hashes with bcrypt. A zero Cost means DefaultBcryptCost.
type BcryptHasher struct{ Cost int }

// Hash returns a salted bcrypt hash of plain
func (b BcryptHasher) Hash(plain string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash: %w", err)
	}
	return string(h), nil
}

// Verify reports whether plain matches a bcrypt hash. A mismatch is not an error.
func (b BcryptHasher) Verify(plain, hashed string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("bcrypt verify: %w", err)
}

// Argon2idHasher hashes with argon2id. Nil Params means DefaultArgon2idParams.
type Argon2idHasher struct{ Params *argon2id.Params }

// Hash returns an encoded argon2id hash of plain
func (a Argon2idHasher) Hash(plain string) (string, error) {
	params := a.Params
	if params == nil {
		params = DefaultArgon2idParams
	}
	h, err := argon2id.CreateHash(plain, params)
	if err != nil {
		return "", fmt.Errorf("argon2id hash: %w", err)
	}
	return h, nil
}

// Verify reports whether plain matches an encoded argon2id hash
func (a Argon2idHasher) Verify(plain, hashed string) (bool, error) {
	ok, err := argon2id.ComparePasswordAndHash(plain, hashed)
	if err != nil {
		return false, fmt.Errorf("argon2id verify: %w", err)
	}
	return ok, nil
}

// MultiHasher hashes with one algorithm and verifies hashes of any supported
// algorithm, so changing the configured algorithm never locks accounts out.
type MultiHasher struct {
	algorithm string
	bcrypt    BcryptHasher
	argon     Argon2idHasher

	dummyOnce sync.Once
	dummy     string
}

// New creates a MultiHasher that produces hashes with the given algorithm
func New(algorithm string, bcryptCost int) (*MultiHasher, error) {
	algorithm = strings.ToLower(strings.TrimSpace(algorithm))
	if algorithm == "" {
		algorithm = AlgorithmBcrypt
	}
	if algorithm != AlgorithmBcrypt && algorithm != AlgorithmArgon2id {
		return nil, fmt.Errorf("unsupported password hash algorithm: %s", algorithm)
	}
	if bcryptCost != 0 && (bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost) {
		return nil, fmt.Errorf("bcrypt cost %d out of range", bcryptCost)
	}
	return &MultiHasher{
		algorithm: algorithm,
		bcrypt:    BcryptHasher{Cost: bcryptCost},
		argon:     Argon2idHasher{Params: DefaultArgon2idParams},
	}, nil
}

// Algorithm returns the algorithm used for new hashes
func (m *MultiHasher) Algorithm() string {
	return m.algorithm
}

// Hash hashes plain with the configured algorithm and a fresh random salt
func (m *MultiHasher) Hash(plain string) (string, error) {
	if m.algorithm == AlgorithmArgon2id {
		return m.argon.Hash(plain)
	}
	return m.bcrypt.Hash(plain)
}

// Verify checks plain against hashed, choosing the algorithm from the hash format
func (m *MultiHasher) Verify(plain, hashed string) (bool, error) {
	switch detect(hashed) {
	case AlgorithmBcrypt:
		return m.bcrypt.Verify(plain, hashed)
	case AlgorithmArgon2id:
		return m.argon.Verify(plain, hashed)
	case "":
		return false, ErrEmptyHash
	default:
		return false, ErrUnknownHashFormat
	}
}

// NeedsRehash reports whether hashed was produced by a different algorithm than the configured one
func (m *MultiHasher) NeedsRehash(hashed string) bool {
	algo := detect(hashed)
	return algo != "" && algo != "unknown" && algo != m.algorithm
}

// VerifyDummy performs one verification against a fixed hash. Login calls it
// for unknown emails so the response time does not reveal whether an account exists.
func (m *MultiHasher) VerifyDummy(plain string) {
	m.dummyOnce.Do(func() {
		h, err := m.Hash("camp-dummy-password")
		if err == nil {
			m.dummy = h
		}
	})
	if m.dummy != "" {
		_, _ = m.Verify(plain, m.dummy)
	}
}

func detect(hashed string) string {
	switch {
	case hashed == "":
		return ""
	case strings.HasPrefix(hashed, "$argon2id$"):
		return AlgorithmArgon2id
	case strings.HasPrefix(hashed, "$2a$"), strings.HasPrefix(hashed, "$2b$"), strings.HasPrefix(hashed, "$2y$"):
		return AlgorithmBcrypt
	default:
		return "unknown"
	}
}
