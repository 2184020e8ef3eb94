package coupon

import (
	"context"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
)

// DefaultPrefix is used when a caller does not supply a code prefix.
const DefaultPrefix = "SAVE"

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	randomLen    = 4
	maxAttempts  = 10

	// Sized for one retailer's order volume; the filter only tracks codes
	// issued by this process, the unique index is the global guarantee.
	bloomCapacity = 1 << 20
	bloomFPR      = 0.01
)

// CodeChecker is the lookup the generator uses to test candidate codes
// against the persisted set. Repository satisfies it.
type CodeChecker interface {
	CodeExists(ctx context.Context, code string) (bool, error)
}

// Generator mints human-shareable coupon codes of the form
// PREFIX + 4 random alphanumerics + 3-digit time suffix, e.g. SAVE15Q7XK042.
//
// A bloom filter of locally issued codes short-circuits obvious collisions
// before the repository round-trip. Both checks are best-effort: the storage
// layer's unique index is what actually guarantees uniqueness, and Insert
// callers retry on ErrCodeTaken.
type Generator struct {
	codes CodeChecker
	now   func() time.Time

	mu   sync.Mutex
	seen *bloom.BloomFilter
}

// NewGenerator creates a Generator backed by the given code lookup.
func NewGenerator(codes CodeChecker) *Generator {
	return &Generator{
		codes: codes,
		now:   time.Now,
		seen:  bloom.NewWithEstimates(bloomCapacity, bloomFPR),
	}
}

// Generate returns a code verified unique against the persisted set,
// retrying on collision up to 10 times. An empty prefix falls back to
// DefaultPrefix. Exhausting the budget returns ErrCodeExhausted; callers
// must not create a coupon without a verified code.
func (g *Generator) Generate(ctx context.Context, prefix string) (string, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		code := g.mint(prefix)

		g.mu.Lock()
		local := g.seen.TestString(code)
		g.mu.Unlock()
		if local {
			continue
		}

		exists, err := g.codes.CodeExists(ctx, code)
		if err != nil {
			return "", errors.Wrap(err, "check code existence")
		}
		if exists {
			continue
		}

		g.mu.Lock()
		g.seen.AddString(code)
		g.mu.Unlock()

		return code, nil
	}

	return "", ErrCodeExhausted
}

// mint builds one candidate: the prefix, 4 random alphanumerics, and the
// last three digits of the current unix-millisecond clock. Promo codes are
// not credentials, so math/rand is enough.
func (g *Generator) mint(prefix string) string {
	buf := make([]byte, 0, len(prefix)+randomLen+3)
	buf = append(buf, prefix...)
	for range randomLen {
		buf = append(buf, codeAlphabet[rand.IntN(len(codeAlphabet))])
	}

	ms := strconv.FormatInt(g.now().UnixMilli(), 10)
	buf = append(buf, ms[len(ms)-3:]...)

	return string(buf)
}
