// Package layout produces and transports hidden card layouts. The generator
// and codec are pure transforms; neither holds state nor decides outcomes.
package layout

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// DefaultPairCount is the standard board size: 8 pairs over 16 positions.
const DefaultPairCount = 8

// ErrInvalidPairCount indicates a pair count outside the supported range.
var ErrInvalidPairCount = errors.New("invalid pair count")

// Generate returns a uniformly random permutation of
// [1,1,2,2,…,pairCount,pairCount]. The shuffle is Fisher-Yates driven by
// crypto/rand; a biased shuffle here is a payout-integrity bug.
func Generate(pairCount int) ([]int, error) {
	if pairCount < 2 || pairCount > 16 {
		return nil, ErrInvalidPairCount
	}

	cards := make([]int, 0, 2*pairCount)
	for p := 1; p <= pairCount; p++ {
		cards = append(cards, p, p)
	}

	for i := len(cards) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return nil, fmt.Errorf("shuffle: %w", err)
		}
		j := int(n.Int64())
		cards[i], cards[j] = cards[j], cards[i]
	}
	return cards, nil
}

// Valid reports whether cards is a well-formed layout for pairCount: length
// 2·pairCount with each pair ID in [1,pairCount] appearing exactly twice.
func Valid(cards []int, pairCount int) bool {
	if len(cards) != 2*pairCount {
		return false
	}
	seen := make(map[int]int, pairCount)
	for _, c := range cards {
		if c < 1 || c > pairCount {
			return false
		}
		seen[c]++
	}
	for p := 1; p <= pairCount; p++ {
		if seen[p] != 2 {
			return false
		}
	}
	return true
}
