package hub

import (
	"errors"
	"math/rand/v2"
	"strings"
)

const (
	DefaultCodeLength = 4
	maxCodeAttempts   = 64
)

var ErrCodeSpaceExhausted = errors.New("no free room code")

type CodeGenerator interface {
	Generate() string
}

// DigitCodeGenerator yields Length uniformly random decimal digits.
type DigitCodeGenerator struct {
	Length int
}

func (g DigitCodeGenerator) Generate() string {
	n := g.Length
	if n <= 0 {
		n = DefaultCodeLength
	}
	var b strings.Builder
	b.Grow(n)
	for range n {
		b.WriteByte(byte('0' + rand.IntN(10)))
	}
	return b.String()
}

// newCodeLocked regenerates on collision with a live room.
func (h *Hub) newCodeLocked() (string, error) {
	for range maxCodeAttempts {
		code := h.codes.Generate()
		if _, taken := h.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}
