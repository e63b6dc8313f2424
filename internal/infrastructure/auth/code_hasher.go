package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/you/kioskpay/domain"
	"golang.org/x/crypto/bcrypt"
)

// CodeHasherImpl stores verification codes as bcrypt(HMAC-SHA256(pepper, code)).
// The pepper is never written next to the hashes.
type CodeHasherImpl struct {
	pepper []byte
	cost   int
}

// NewCodeHasher creates a peppered bcrypt code hasher
func NewCodeHasher(pepper string) domain.CodeHasher {
	return &CodeHasherImpl{pepper: []byte(pepper), cost: bcrypt.MinCost}
}

func (p *CodeHasherImpl) mac(code string) []byte {
	m := hmac.New(sha256.New, p.pepper)
	m.Write([]byte(code))
	return []byte(hex.EncodeToString(m.Sum(nil)))
}

func (p *CodeHasherImpl) Hash(code string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword(p.mac(code), p.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (p *CodeHasherImpl) Verify(hashed, code string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), p.mac(code)) == nil
}
