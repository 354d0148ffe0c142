package app

import (
	"errors"
	"fmt"
	"math/bits"

	"pairstake/internal/domain"
	"pairstake/internal/layout"
)

// ErrIntegrity indicates a structurally impossible session state. Sessions
// that trip this are forced to a loss and invalidated; the violation detail
// never leaves the server.
var ErrIntegrity = errors.New("integrity violation")

// CheckIntegrity rejects structurally impossible session states. It runs
// before every state mutation and again on any state reconstructed from
// untrusted input. It is a hard security boundary, not a soft warning.
func CheckIntegrity(s *domain.GameSession) error {
	pairCount := s.PairCount()
	size := len(s.Layout)

	if !layout.Valid(s.Layout, pairCount) {
		return fmt.Errorf("%w: layout is not a valid %d-pair board", ErrIntegrity, pairCount)
	}

	if s.MovesUsed < 0 || s.MovesUsed > s.MovesBudget {
		return fmt.Errorf("%w: movesUsed %d outside [0, %d]", ErrIntegrity, s.MovesUsed, s.MovesBudget)
	}
	if s.MatchedPairs < 0 || s.MatchedPairs > pairCount {
		return fmt.Errorf("%w: matchedPairs %d outside [0, %d]", ErrIntegrity, s.MatchedPairs, pairCount)
	}
	if s.MatchedPairs > s.MovesUsed {
		return fmt.Errorf("%w: %d pairs matched in %d moves", ErrIntegrity, s.MatchedPairs, s.MovesUsed)
	}

	if n := bits.OnesCount32(s.Matched); n != 2*s.MatchedPairs {
		return fmt.Errorf("%w: %d matched positions for %d matched pairs", ErrIntegrity, n, s.MatchedPairs)
	}
	if s.Matched>>uint(size) != 0 {
		return fmt.Errorf("%w: matched bit beyond board", ErrIntegrity)
	}

	// Matched positions must pair up: each pair ID is matched either at
	// both of its positions or neither.
	perPair := make(map[int]int, pairCount)
	for pos := 0; pos < size; pos++ {
		if s.IsMatched(pos) {
			perPair[s.Layout[pos]]++
		}
	}
	for pairID, n := range perPair {
		if n != 2 {
			return fmt.Errorf("%w: pair %d matched at %d positions", ErrIntegrity, pairID, n)
		}
	}

	// Revealed-but-unmatched slots: in range, distinct, and never a
	// position already matched.
	revealed := s.RevealedUnmatched()
	if len(revealed) > 2 {
		return fmt.Errorf("%w: %d positions revealed at once", ErrIntegrity, len(revealed))
	}
	for _, pos := range revealed {
		if pos < 0 || pos >= size {
			return fmt.Errorf("%w: revealed position %d outside board", ErrIntegrity, pos)
		}
		if s.IsMatched(pos) {
			return fmt.Errorf("%w: position %d both revealed and matched", ErrIntegrity, pos)
		}
	}
	if len(revealed) == 2 && revealed[0] == revealed[1] {
		return fmt.Errorf("%w: position %d revealed twice", ErrIntegrity, revealed[0])
	}

	return nil
}
