package adapthttp

import (
	"errors"
	"net/http"
	"time"

	"pairstake/internal/app"
	"pairstake/internal/domain"
)

func (s *Server) handleGameStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		StakeCents int64  `json:"stakeCents"`
		Theme      string `json:"theme"`
	}
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	user := userFromContext(r)
	res, err := s.game.StartSession(r.Context(), user.ID, body.StakeCents, body.Theme)
	switch {
	case errors.Is(err, app.ErrInvalidStake):
		writeCode(w, http.StatusBadRequest, "InvalidStake")
	case errors.Is(err, domain.ErrActiveSessionExists):
		writeCode(w, http.StatusConflict, "ActiveSessionExists")
	case errors.Is(err, domain.ErrInsufficientBalance):
		writeCode(w, http.StatusBadRequest, "InsufficientBalance")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handleGameFlip(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		SessionID string `json:"sessionId"`
		Position  int    `json:"position"`
		ClientAt  int64  `json:"clientAtUnixMs"`
	}
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	user := userFromContext(r)
	res, err := s.game.Flip(r.Context(), user.ID, body.SessionID, body.Position, time.UnixMilli(body.ClientAt))
	switch {
	case errors.Is(err, app.ErrSessionNotFound):
		writeCode(w, http.StatusNotFound, "SessionNotFound")
	case errors.Is(err, app.ErrSessionNotActive):
		writeCode(w, http.StatusConflict, "SessionNotActive")
	case errors.Is(err, app.ErrInvalidPosition):
		writeCode(w, http.StatusBadRequest, "InvalidPosition")
	case errors.Is(err, domain.ErrVersionConflict):
		// Another request won the write; the client should refetch state.
		writeCode(w, http.StatusConflict, "Conflict")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handleGameState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	user := userFromContext(r)
	res, err := s.game.State(r.Context(), user.ID, r.URL.Query().Get("sessionId"))
	switch {
	case errors.Is(err, app.ErrSessionNotFound):
		writeCode(w, http.StatusNotFound, "SessionNotFound")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handleGameFinalize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		SessionID string `json:"sessionId"`
	}
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	user := userFromContext(r)
	res, err := s.game.Finalize(r.Context(), user.ID, body.SessionID)
	switch {
	case errors.Is(err, app.ErrSessionNotFound):
		writeCode(w, http.StatusNotFound, "SessionNotFound")
	case errors.Is(err, app.ErrSessionStillActive):
		writeCode(w, http.StatusConflict, "SessionStillActive")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handleGameForfeit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		SessionID string `json:"sessionId"`
	}
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	user := userFromContext(r)
	res, err := s.game.Forfeit(r.Context(), user.ID, body.SessionID)
	switch {
	case errors.Is(err, app.ErrSessionNotFound):
		writeCode(w, http.StatusNotFound, "SessionNotFound")
	case errors.Is(err, app.ErrSessionNotActive):
		writeCode(w, http.StatusConflict, "SessionNotActive")
	case errors.Is(err, domain.ErrVersionConflict):
		writeCode(w, http.StatusConflict, "Conflict")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

// handleGameReport is the legacy client-result endpoint, demoted to an
// audit sink. It records what the client claims and nothing else; payouts
// never flow from here.
func (s *Server) handleGameReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		SessionID string `json:"sessionId"`
		Position  int    `json:"position"`
		ClientAt  int64  `json:"clientAtUnixMs"`
	}
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	user := userFromContext(r)
	err := s.game.ReportResult(r.Context(), user.ID, body.SessionID, body.Position, time.UnixMilli(body.ClientAt))
	switch {
	case errors.Is(err, app.ErrSessionNotFound):
		writeCode(w, http.StatusNotFound, "SessionNotFound")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, map[string]any{"recorded": true})
	}
}

func (s *Server) handleGameMoves(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	user := userFromContext(r)
	limit := intQuery(r, "limit", 100)
	moves, err := s.game.Moves(r.Context(), user.ID, r.URL.Query().Get("sessionId"), limit)
	switch {
	case errors.Is(err, app.ErrSessionNotFound):
		writeCode(w, http.StatusNotFound, "SessionNotFound")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, map[string]any{"items": moves})
	}
}

func (s *Server) handleWalletBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	user := userFromContext(r)
	balance, err := s.wallet.Balance(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"balanceCents": balance})
}

func (s *Server) handleWalletTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	user := userFromContext(r)
	limit := intQuery(r, "limit", 20)
	items, err := s.wallet.ListTransactions(r.Context(), user.ID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
