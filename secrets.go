package accounts

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"math/big"
	"time"
)

const (
	verificationCodeMin = 100000
	verificationCodeMax = 999999
	reapplyTokenBytes   = 32
)

// SecretGenerator produces the one time secrets handed to account owners
type SecretGenerator interface {
	// VerificationCode returns a six digit numeric code
	VerificationCode() (string, error)
	// ReapplyToken returns the raw token and the hash that gets stored
	ReapplyToken() (raw string, hash string, err error)
}

type randomSecrets struct{}

// NewSecretGenerator returns a generator backed by crypto/rand
func NewSecretGenerator() SecretGenerator {
	return randomSecrets{}
}

func (randomSecrets) VerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(verificationCodeMax-verificationCodeMin+1))
	if err != nil {
		return "", err
	}
	return big.NewInt(0).Add(n, big.NewInt(verificationCodeMin)).String(), nil
}

func (randomSecrets) ReapplyToken() (string, string, error) {
	buf := make([]byte, reapplyTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	raw := hex.EncodeToString(buf)
	return raw, HashReapplyToken(raw), nil
}

// HashReapplyToken is the lookup key stored for a raw reapply token
func HashReapplyToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func secretsEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// IsExpired reports whether expiresAt has been reached. The expiry
// instant itself counts as expired, a nil expiry is always expired.
func IsExpired(now time.Time, expiresAt *time.Time) bool {
	if expiresAt == nil {
		return true
	}
	return !now.Before(*expiresAt)
}

// CooldownRemaining returns how long until a new code may be issued.
// Zero means a new code may be issued now.
func CooldownRemaining(now, issuedAt time.Time, cooldown time.Duration) time.Duration {
	left := issuedAt.Add(cooldown).Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

func timePtr(t time.Time) *time.Time {
	return &t
}
