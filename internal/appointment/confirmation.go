package appointment

import (
	"crypto/rand"
	"fmt"
	"io"
	"regexp"
)

const (
	DefaultConfirmationPrefix = "CB"

	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 8
	// largest multiple of len(codeAlphabet) that fits in a byte
	codeRejectAt = 252
)

var confirmationRe = regexp.MustCompile(`^[A-Z]{2}-[A-Z0-9]{8}$`)

// CodeGenerator produces external confirmation numbers. The ledger, not
// the generator, guarantees uniqueness.
type CodeGenerator interface {
	Generate() (string, error)
}

type RandomCodeGenerator struct {
	prefix string
	rand   io.Reader
}

func NewRandomCodeGenerator(prefix string) *RandomCodeGenerator {
	if prefix == "" {
		prefix = DefaultConfirmationPrefix
	}
	return &RandomCodeGenerator{prefix: prefix, rand: rand.Reader}
}

// Generate returns PREFIX-XXXXXXXX drawn uniformly from A-Z0-9.
func (g *RandomCodeGenerator) Generate() (string, error) {
	out := make([]byte, 0, len(g.prefix)+1+codeLength)
	out = append(out, g.prefix...)
	out = append(out, '-')

	buf := make([]byte, codeLength*2)
	for len(out) < cap(out) {
		if _, err := io.ReadFull(g.rand, buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= codeRejectAt {
				continue
			}
			out = append(out, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(out) == cap(out) {
				break
			}
		}
	}
	return string(out), nil
}

// ValidConfirmationNumber reports whether s has the PREFIX-XXXXXXXX shape.
func ValidConfirmationNumber(s string) bool {
	return confirmationRe.MatchString(s)
}
