// Package codegen produces coupon and access codes.
//
// Uniqueness is not guaranteed here: coupon code collisions surface as a store
// conflict and access code callers retry against the store.
package codegen

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const (
	couponCodeLength = 8
	groupSize        = 4
	accessCodeLength = 6
	alphabet         = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Generator creates codes from the system clock and crypto/rand.
type Generator struct {
	now func() time.Time
}

// New returns a Generator backed by time.Now.
func New() *Generator {
	return &Generator{now: time.Now}
}

// CouponCode hashes seed, the current time and 16 random bytes, and returns the
// first eight hex digits upper-cased as XXXX-XXXX. The seed cannot be recovered.
func (g *Generator) CouponCode(seed string) string {
	salt := make([]byte, 16)
	_, _ = rand.Read(salt) // never returns an error on supported platforms

	sum := sha256.Sum256([]byte(seed + strconv.FormatInt(g.now().UnixMilli(), 10) + hex.EncodeToString(salt)))
	code := strings.ToUpper(hex.EncodeToString(sum[:])[:couponCodeLength])
	return group(code)
}

// AccessCode draws six characters uniformly from A-Z0-9.
func (g *Generator) AccessCode() string {
	var b strings.Builder
	b.Grow(accessCodeLength)
	size := big.NewInt(int64(len(alphabet)))
	for i := 0; i < accessCodeLength; i++ {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			panic("codegen: crypto/rand unavailable: " + err.Error())
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return b.String()
}

func group(code string) string {
	parts := make([]string, 0, (len(code)+groupSize-1)/groupSize)
	for len(code) > groupSize {
		parts = append(parts, code[:groupSize])
		code = code[groupSize:]
	}
	parts = append(parts, code)
	return strings.Join(parts, "-")
}
