// Package random provides the seeded random source owned by a battle.
//
// Every draw made during resolution goes through one Source, so two battles
// created with the same seed and fed the same inputs observe the same
// sequence of numbers. Nothing in this package reads process-wide state.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
)

// ErrInvalidDiceSpec indicates a die specification has invalid fields.
var ErrInvalidDiceSpec = errors.New("dice must have positive sides and count")

// Source is a deterministic random source. It is not safe for concurrent
// use; a battle is single-threaded.
type Source struct {
	seed  int64
	rng   *rand.Rand
	draws int
}

// New returns a Source seeded with seed.
func New(seed int64) *Source {
	return &Source{seed: seed, rng: rand.New(rand.NewSource(seed))}
}

// Seed returns the seed the source was created with.
func (s *Source) Seed() int64 { return s.seed }

// Draws returns how many numbers have been drawn so far.
func (s *Source) Draws() int { return s.draws }

// Intn returns a number in [0, n). Non-positive n yields 0 without
// consuming a draw.
func (s *Source) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	s.draws++
	return s.rng.Intn(n)
}

// DieRoll captures the results of rolling one die spec.
type DieRoll struct {
	Sides   int
	Results []int
	Total   int
}

// Roll rolls count dice with the given number of sides.
func (s *Source) Roll(sides, count int) (DieRoll, error) {
	if sides <= 0 || count <= 0 {
		return DieRoll{}, ErrInvalidDiceSpec
	}
	roll := DieRoll{Sides: sides, Results: make([]int, count)}
	for i := range count {
		value := s.Intn(sides) + 1
		roll.Results[i] = value
		roll.Total += value
	}
	return roll, nil
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}
