package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/example/board-platform/internal/platform/api"
	"github.com/example/board-platform/services/board/internal/domain"
	"github.com/example/board-platform/services/board/internal/service"
)

type createThreadRequest struct {
	Title    string `json:"title" validate:"required"`
	Text     string `json:"text" validate:"required"`
	Country  string `json:"country" validate:"omitempty,len=2,alpha"`
	Language string `json:"language" validate:"omitempty,len=2,alpha"`
}

type editRequest struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type postRequest struct {
	Text string `json:"text" validate:"required"`
}

type listResponse struct {
	Threads []service.ThreadSummary `json:"threads"`
}

type threadResponse struct {
	Thread service.ThreadView `json:"thread"`
}

// ListThreads handles GET /board/?country=&lang=&off=&num=
func ListThreads(b Board, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := caller(r)
		if !ok {
			unauthorized(w, r)
			return
		}
		q := r.URL.Query()
		threads, err := b.ListThreads(r.Context(), c, service.ListParams{
			Country:  strings.TrimSpace(q.Get("country")),
			Language: strings.TrimSpace(q.Get("lang")),
			Offset:   queryInt(r, "off"),
			Limit:    queryInt(r, "num"),
		})
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, listResponse{Threads: threads})
	}
}

// CreateThread handles POST /board/
func CreateThread(b Board, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := caller(r)
		if !ok {
			unauthorized(w, r)
			return
		}
		req, ok := decodeJSON[createThreadRequest](w, r)
		if !ok {
			return
		}
		th, err := b.CreateThread(r.Context(), c, service.ThreadInput{
			Title:    req.Title,
			Text:     req.Text,
			Country:  req.Country,
			Language: req.Language,
		})
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		api.WriteJSON(w, http.StatusCreated, th)
	}
}

// GetThread handles GET /board/{threadID}
func GetThread(b Board, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := caller(r)
		if !ok {
			unauthorized(w, r)
			return
		}
		th, err := b.GetThread(r.Context(), c, target(r).ThreadID)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, threadResponse{Thread: th})
	}
}

// PostMessage handles POST /board/{threadID}
func PostMessage(b Board, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := caller(r)
		if !ok {
			unauthorized(w, r)
			return
		}
		req, ok := decodeJSON[postRequest](w, r)
		if !ok {
			return
		}
		m, err := b.PostMessage(r.Context(), c, target(r).ThreadID, req.Text)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		api.WriteJSON(w, http.StatusCreated, m)
	}
}

// GetMessage handles GET /board/{threadID}/{messageID}
func GetMessage(b Board, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := caller(r)
		if !ok {
			unauthorized(w, r)
			return
		}
		t := target(r)
		m, err := b.GetMessage(r.Context(), c, t.ThreadID, t.MessageID)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, m)
	}
}

// PostComment handles POST /board/{threadID}/{messageID}
func PostComment(b Board, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := caller(r)
		if !ok {
			unauthorized(w, r)
			return
		}
		req, ok := decodeJSON[postRequest](w, r)
		if !ok {
			return
		}
		t := target(r)
		com, err := b.PostComment(r.Context(), c, t.ThreadID, t.MessageID, req.Text)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		api.WriteJSON(w, http.StatusCreated, com)
	}
}

// GetComment handles GET /board/{threadID}/{messageID}/{commentID}
func GetComment(b Board, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := caller(r)
		if !ok {
			unauthorized(w, r)
			return
		}
		t := target(r)
		com, err := b.GetComment(r.Context(), c, t.ThreadID, t.MessageID, t.CommentID)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, com)
	}
}

// Edit handles PUT on a thread, message or comment path.
func Edit(b Board, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := caller(r)
		if !ok {
			unauthorized(w, r)
			return
		}
		req, ok := decodeJSON[editRequest](w, r)
		if !ok {
			return
		}
		res, err := b.Edit(r.Context(), c, target(r), service.Patch{Title: req.Title, Text: req.Text})
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, res)
	}
}

// Delete handles DELETE on a thread, message or comment path.
func Delete(b Board, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := caller(r)
		if !ok {
			unauthorized(w, r)
			return
		}
		res, err := b.Delete(r.Context(), c, target(r))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, res)
	}
}

// Vote handles PUT (upvote) and DELETE (downvote) on .../vote paths.
func Vote(b Board, log *zap.Logger, v domain.Vote) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := caller(r)
		if !ok {
			unauthorized(w, r)
			return
		}
		res, err := b.Vote(r.Context(), c, target(r), v)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, res)
	}
}
