package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sweeney/date-slicer/internal/daterange"
	"github.com/sweeney/date-slicer/internal/reconcile"
	"github.com/sweeney/date-slicer/internal/store/sqlite"
)

// SelectionRequest is the body of POST /api/selection.
type SelectionRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// BookmarkRequest is the body of POST /api/bookmarks.
type BookmarkRequest struct {
	Name string `json:"name"`
}

// ResultJSON reports the outcome of a tick or a user change.
type ResultJSON struct {
	Rule      string `json:"rule"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	WroteBack bool   `json:"wrote_back"`
}

// BookmarkJSON is a stored bookmark.
type BookmarkJSON struct {
	Name      string             `json:"name"`
	Snapshot  reconcile.Snapshot `json:"snapshot"`
	UpdatedAt string             `json:"updated_at"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func resultJSON(res reconcile.Result) ResultJSON {
	out := ResultJSON{Rule: string(res.Rule), WroteBack: res.Write != nil}
	if res.Selected {
		out.From = res.Selection.From.Format(daterange.DateLayout)
		out.To = res.Selection.To.Format(daterange.DateLayout)
	}
	return out
}

func bookmarkJSON(b sqlite.Bookmark) BookmarkJSON {
	return BookmarkJSON{
		Name:      b.Name,
		Snapshot:  b.Snapshot,
		UpdatedAt: b.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, sqlite.ErrBookmarkNotFound):
		return http.StatusNotFound
	case errors.Is(err, reconcile.ErrNotReady):
		return http.StatusConflict
	case errors.Is(err, daterange.ErrInvalidRange),
		errors.Is(err, reconcile.ErrInvalidSnapshot),
		errors.Is(err, sqlite.ErrInvalidName):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
