package app

import (
	"testing"
	"time"

	"pairstake/internal/domain"
)

func validSession() *domain.GameSession {
	return &domain.GameSession{
		ID:          "s1",
		OwnerID:     1,
		StakeCents:  1000,
		Layout:      []int{1, 2, 3, 4, 1, 2, 3, 4},
		MovesBudget: 22,
		TimeBudget:  120 * time.Second,
		Status:      domain.StatusActive,
		RevealA:     domain.NoReveal,
		RevealB:     domain.NoReveal,
	}
}

func TestCheckIntegrity(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *domain.GameSession)
		wantErr bool
	}{
		{
			name:   "fresh session",
			mutate: func(s *domain.GameSession) {},
		},
		{
			name: "one pair legitimately matched",
			mutate: func(s *domain.GameSession) {
				s.SetMatched(0)
				s.SetMatched(4)
				s.MatchedPairs = 1
				s.MovesUsed = 3
			},
		},
		{
			name: "one card revealed",
			mutate: func(s *domain.GameSession) {
				s.RevealA = 2
			},
		},
		{
			name: "layout with a missing pair",
			mutate: func(s *domain.GameSession) {
				s.Layout = []int{1, 1, 2, 2, 3, 3, 4, 5}
			},
			wantErr: true,
		},
		{
			name: "moves used over budget",
			mutate: func(s *domain.GameSession) {
				s.MovesUsed = 23
			},
			wantErr: true,
		},
		{
			name: "negative moves",
			mutate: func(s *domain.GameSession) {
				s.MovesUsed = -1
			},
			wantErr: true,
		},
		{
			name: "more pairs than moves",
			mutate: func(s *domain.GameSession) {
				s.SetMatched(0)
				s.SetMatched(4)
				s.MatchedPairs = 1
				s.MovesUsed = 0
			},
			wantErr: true,
		},
		{
			name: "matched count disagrees with bitmask",
			mutate: func(s *domain.GameSession) {
				s.MatchedPairs = 2
				s.MovesUsed = 4
			},
			wantErr: true,
		},
		{
			name: "matched bit beyond the board",
			mutate: func(s *domain.GameSession) {
				s.SetMatched(0)
				s.SetMatched(9)
				s.MatchedPairs = 1
				s.MovesUsed = 2
			},
			wantErr: true,
		},
		{
			name: "half-matched pair",
			mutate: func(s *domain.GameSession) {
				s.SetMatched(0)
				s.SetMatched(1)
				s.MatchedPairs = 1
				s.MovesUsed = 2
			},
			wantErr: true,
		},
		{
			name: "revealed position outside board",
			mutate: func(s *domain.GameSession) {
				s.RevealA = 12
			},
			wantErr: true,
		},
		{
			name: "same position revealed twice",
			mutate: func(s *domain.GameSession) {
				s.RevealA = 3
				s.RevealB = 3
			},
			wantErr: true,
		},
		{
			name: "revealed position already matched",
			mutate: func(s *domain.GameSession) {
				s.SetMatched(0)
				s.SetMatched(4)
				s.MatchedPairs = 1
				s.MovesUsed = 2
				s.RevealA = 0
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSession()
			tt.mutate(s)
			err := CheckIntegrity(s)
			if tt.wantErr && err == nil {
				t.Fatal("CheckIntegrity accepted an impossible state")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("CheckIntegrity rejected a legal state: %v", err)
			}
		})
	}
}
