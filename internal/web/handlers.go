package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sweeney/date-slicer/internal/daterange"
	"github.com/sweeney/date-slicer/internal/reconcile"
)

const maxBodyBytes = 1 << 16

var errUnavailable = errors.New("not configured")

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	if s.slicer == nil {
		writeError(w, http.StatusServiceUnavailable, "widget unavailable", errUnavailable)
		return
	}

	var req SelectionRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	from, okFrom := daterange.ParseString(req.From, s.loc)
	to, okTo := daterange.ParseString(req.To, s.loc)
	if !okFrom || !okTo {
		writeError(w, http.StatusBadRequest, "invalid date", daterange.ErrInvalidRange)
		return
	}
	rng, err := daterange.NewRange(from, to, s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid range", err)
		return
	}

	res, err := s.slicer.OnChange(r.Context(), rng)
	if err != nil {
		writeError(w, errorStatus(err), "selection rejected", err)
		return
	}
	s.refresh()
	writeJSON(w, http.StatusOK, resultJSON(res))
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	if s.slicer == nil {
		writeError(w, http.StatusServiceUnavailable, "widget unavailable", errUnavailable)
		return
	}

	snap := s.slicer.CaptureState()
	if s.states != nil {
		if err := s.states.PublishState(snap); err != nil {
			s.logger.Warn("http: publish state failed", "err", err)
		}
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	if s.slicer == nil {
		writeError(w, http.StatusServiceUnavailable, "widget unavailable", errUnavailable)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	snap, err := reconcile.ParseSnapshot(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid snapshot", err)
		return
	}
	s.restore(w, r, snap)
}

func (s *Server) restore(w http.ResponseWriter, r *http.Request, snap reconcile.Snapshot) {
	res, err := s.slicer.RestoreState(r.Context(), snap)
	if err != nil {
		writeError(w, errorStatus(err), "restore rejected", err)
		return
	}
	s.refresh()
	writeJSON(w, http.StatusOK, resultJSON(res))
}

func (s *Server) handleListBookmarks(w http.ResponseWriter, r *http.Request) {
	if s.bookmarks == nil {
		writeError(w, http.StatusServiceUnavailable, "bookmarks unavailable", errUnavailable)
		return
	}

	list, err := s.bookmarks.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list bookmarks", err)
		return
	}
	out := make([]BookmarkJSON, 0, len(list))
	for _, b := range list {
		out = append(out, bookmarkJSON(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSaveBookmark(w http.ResponseWriter, r *http.Request) {
	if s.bookmarks == nil || s.slicer == nil {
		writeError(w, http.StatusServiceUnavailable, "bookmarks unavailable", errUnavailable)
		return
	}

	var req BookmarkRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	snap := s.slicer.CaptureState()
	if err := s.bookmarks.Save(r.Context(), req.Name, snap); err != nil {
		writeError(w, errorStatus(err), "failed to save bookmark", err)
		return
	}
	b, err := s.bookmarks.Get(r.Context(), req.Name)
	if err != nil {
		writeError(w, errorStatus(err), "failed to read bookmark", err)
		return
	}
	writeJSON(w, http.StatusCreated, bookmarkJSON(b))
}

func (s *Server) handleApplyBookmark(w http.ResponseWriter, r *http.Request) {
	if s.bookmarks == nil || s.slicer == nil {
		writeError(w, http.StatusServiceUnavailable, "bookmarks unavailable", errUnavailable)
		return
	}

	b, err := s.bookmarks.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, errorStatus(err), "bookmark not applied", err)
		return
	}
	s.restore(w, r, b.Snapshot)
}

func (s *Server) handleDeleteBookmark(w http.ResponseWriter, r *http.Request) {
	if s.bookmarks == nil {
		writeError(w, http.StatusServiceUnavailable, "bookmarks unavailable", errUnavailable)
		return
	}

	if err := s.bookmarks.Delete(r.Context(), chi.URLParam(r, "name")); err != nil {
		writeError(w, errorStatus(err), "failed to delete bookmark", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
