// Package rng provides the single deterministic random stream shared by every
// stochastic decision of an experiment. The stream state round-trips through
// MarshalBinary so a resumed run continues the exact same sequence.
package rng

import (
	"fmt"
	"math/rand/v2"
)

const seedSalt = 0x9e3779b97f4a7c15

type Stream struct {
	*rand.Rand
	src *rand.PCG
}

func New(seed uint64) *Stream {
	src := rand.NewPCG(seed, seed^seedSalt)
	return &Stream{Rand: rand.New(src), src: src}
}

// Restore rebuilds a stream from a state produced by MarshalBinary.
func Restore(state []byte) (*Stream, error) {
	src := rand.NewPCG(0, 0)
	if err := src.UnmarshalBinary(state); err != nil {
		return nil, fmt.Errorf("restore rng state: %w", err)
	}
	return &Stream{Rand: rand.New(src), src: src}, nil
}

func (s *Stream) MarshalBinary() ([]byte, error) {
	return s.src.MarshalBinary()
}

// Child derives an independent stream by consuming two draws from s.
func (s *Stream) Child() *Stream {
	hi := s.Uint64()
	lo := s.Uint64()
	src := rand.NewPCG(hi, lo)
	return &Stream{Rand: rand.New(src), src: src}
}
