package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ianyh/castle/internal/engine"
	"github.com/ianyh/castle/pkg/core"
)

func (s *Server) handleListSheets(w http.ResponseWriter, r *http.Request) {
	sheets, err := s.store.ListSheets()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sheets": sheets})
}

func (s *Server) handleGetSheet(w http.ResponseWriter, r *http.Request) {
	sheet, err := s.store.GetSheet(chi.URLParam(r, "title"))
	if errors.Is(err, core.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sheet)
}

func (s *Server) handleGetRow(w http.ResponseWriter, r *http.Request) {
	row, err := s.store.GetRow(chi.URLParam(r, "id"))
	if errors.Is(err, core.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, row)
}

func (s *Server) handleRelationships(w http.ResponseWriter, r *http.Request) {
	groups, err := s.store.Relationships(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, core.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"relationships": groups})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	results, err := s.store.Search(r.Context(), query)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if results == nil {
		results = []core.SearchResult{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"query": query, "results": results})
}

func (s *Server) handleListSpecials(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.specials))
	for _, sp := range s.specials {
		names = append(names, sp.Name)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"specials": names})
}

func (s *Server) handleSearchSpecial(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var special *core.Special
	for i := range s.specials {
		if strings.EqualFold(s.specials[i].Name, name) {
			special = &s.specials[i]
			break
		}
	}
	if special == nil {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("special %q: %w", name, core.ErrNotFound))
		return
	}

	results, err := s.store.SearchSpecial(r.Context(), *special)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if results == nil {
		results = []core.SearchResult{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"special": special.Name, "results": results})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"syncing": s.engine.Syncing()}

	lastSync, err := s.store.LastSync()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if lastSync != nil {
		status["lastSync"] = lastSync.Format(time.RFC3339)
	}

	run, err := s.store.GetLatestSyncRun()
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if run != nil {
		status["latestRun"] = run
	}

	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.engine.Syncing() {
		s.writeError(w, http.StatusConflict, engine.ErrSyncInProgress)
		return
	}

	// The sync outlives the request; progress arrives on /api/events.
	go func() {
		if _, err := s.engine.Sync(context.Background()); err != nil {
			s.logger.Error("api-triggered sync failed", "error", err)
		}
	}()

	s.writeJSON(w, http.StatusAccepted, map[string]any{"status": "started"})
}

// handleEvents streams sync lifecycle events as server-sent events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(events)

	for {
		select {
		case <-r.Context().Done():
			return
		case event := <-events:
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
