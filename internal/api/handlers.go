package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MJE43/arcade-session-go/internal/games"
	"github.com/MJE43/arcade-session-go/internal/session"
)

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, GetVersionInfo())
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, GamesResponse{
		Games:         s.arcade.Games(r.Context()),
		EngineVersion: EngineVersion,
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	bal, err := s.arcade.RefreshBalance(r.Context())
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, BalanceResponse{Balance: bal})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.arcade.History(r.Context())
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, HistoryResponse{Entries: entries, Count: len(entries)})
}

// kindParam resolves the {kind} URL parameter, writing a 404 when unknown.
func (s *Server) kindParam(w http.ResponseWriter, r *http.Request) (games.Kind, bool) {
	raw := chi.URLParam(r, "kind")
	kind, err := games.ParseKind(raw)
	if err != nil {
		s.errorHandler.HandleNotFound(w, r, ErrTypeGameNotFound, raw)
		return "", false
	}
	return kind, true
}

// openSession returns the session for the URL's game, writing a 404 when
// there is none.
func (s *Server) openSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	kind, ok := s.kindParam(w, r)
	if !ok {
		return nil, false
	}
	sess, ok := s.arcade.Get(kind)
	if !ok {
		s.errorHandler.HandleNotFound(w, r, ErrTypeSessionNotFound, string(kind))
		return nil, false
	}
	return sess, true
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kindParam(w, r)
	if !ok {
		return
	}
	sess, err := s.arcade.Open(kind)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.openSession(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kindParam(w, r)
	if !ok {
		return
	}
	if !s.arcade.Close(kind) {
		s.errorHandler.HandleNotFound(w, r, ErrTypeSessionNotFound, string(kind))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleStartRound opens the game's session if needed and places a wager.
func (s *Server) handleStartRound(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kindParam(w, r)
	if !ok {
		return
	}
	var req StartRequest
	if err := decode(r, &req); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", err.Error())
		return
	}
	if req.Wager == "" {
		s.errorHandler.HandleValidationError(w, r, "wager", "wager is required")
		return
	}
	sess, err := s.arcade.Open(kind)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	started, err := sess.Start(r.Context(), session.StartRequest{Wager: req.Wager, MineCount: req.MineCount})
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	status := http.StatusAccepted
	if !started {
		status = http.StatusOK
	}
	s.writeJSON(w, status, StartResponse{Started: started, Snapshot: sess.Snapshot()})
}

func (s *Server) handlePick(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.openSession(w, r)
	if !ok {
		return
	}
	var req PickRequest
	if err := decode(r, &req); err != nil || req.Position == nil {
		s.errorHandler.HandleValidationError(w, r, "position", "position is required")
		return
	}
	if err := sess.Pick(*req.Position); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.openSession(w, r)
	if !ok {
		return
	}
	var req RevealRequest
	if err := decode(r, &req); err != nil || req.Cell == nil {
		s.errorHandler.HandleValidationError(w, r, "cell", "cell is required")
		return
	}
	res, err := sess.Reveal(*req.Cell)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, RevealResponse{Result: res.String(), Snapshot: sess.Snapshot()})
}

func (s *Server) handleCashOut(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.openSession(w, r)
	if !ok {
		return
	}
	if err := sess.CashOut(); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.openSession(w, r)
	if !ok {
		return
	}
	if err := sess.Acknowledge(); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess.Snapshot())
}
