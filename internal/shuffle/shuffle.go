// Package shuffle produces reproducible permutations from composite string seeds.
//
// The output depends only on the seed: no wall clock, no global random source.
// An attempt session is therefore fully reproducible from
// (examID, studentID, sessionID) before any draft has been written.
package shuffle

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Seed purposes.
const (
	PurposeQuestionOrder = "QORDER"
	PurposeOptions       = "OPT"
)

const seedSeparator = "|"

// Seed builds the composite seed string for one shuffling purpose.
func Seed(examID, studentID, sessionID, purpose string, extra ...string) string {
	parts := make([]string, 0, 4+len(extra))
	parts = append(parts, examID, studentID, sessionID, purpose)
	parts = append(parts, extra...)
	return strings.Join(parts, seedSeparator)
}

// QuestionOrderSeed is the seed of a session's question order.
func QuestionOrderSeed(examID, studentID, sessionID string) string {
	return Seed(examID, studentID, sessionID, PurposeQuestionOrder)
}

// OptionSeed is the seed of one question's option order, keyed by the
// question's original index in the exam.
func OptionSeed(examID, studentID, sessionID string, originalIndex int) string {
	return Seed(examID, studentID, sessionID, PurposeOptions, strconv.Itoa(originalIndex))
}

// Hash folds the 64-bit xxhash of the seed into 32 bits.
func Hash(seed string) uint32 {
	h := xxhash.Sum64String(seed)
	return uint32(h>>32) ^ uint32(h)
}

// Shuffle returns a seeded Fisher–Yates permutation of seq. seq is not modified.
func Shuffle[T any](seq []T, seed string) []T {
	out := make([]T, len(seq))
	copy(out, seq)

	rng := newMulberry32(Hash(seed))
	for i := len(out) - 1; i > 0; i-- {
		j := rng.intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Permutation returns a seeded permutation of [0..n-1].
func Permutation(n int, seed string) []int {
	if n <= 0 {
		return []int{}
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return Shuffle(idx, seed)
}

// IsPermutation reports whether order contains every index in [0..n-1] exactly once.
func IsPermutation(order []int, n int) bool {
	if len(order) != n {
		return false
	}
	seen := make([]bool, n)
	for _, v := range order {
		if v < 0 || v >= n || seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}

// mulberry32 is a small 32-bit generator with a fixed, portable sequence.
type mulberry32 struct {
	state uint32
}

func newMulberry32(seed uint32) *mulberry32 {
	return &mulberry32{state: seed}
}

func (m *mulberry32) next() uint32 {
	m.state += 0x6D2B79F5
	t := m.state
	t = (t ^ (t >> 15)) * (t | 1)
	t ^= t + (t^(t>>7))*(t|61)
	return t ^ (t >> 14)
}

// float returns a value in [0, 1).
func (m *mulberry32) float() float64 {
	return float64(m.next()) / 4294967296.0
}

func (m *mulberry32) intn(n int) int {
	return int(m.float() * float64(n))
}
