package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/example/board-platform/internal/platform/api"
	"github.com/example/board-platform/internal/platform/auth"
	"github.com/example/board-platform/internal/platform/httpserver"
	"github.com/example/board-platform/services/board/internal/domain"
	"github.com/example/board-platform/services/board/internal/service"
)

const BannerText = "board-wolf - Message board layer for Wolf's applications."

// Board is the service surface the handlers drive.
type Board interface {
	ListThreads(ctx context.Context, caller service.Caller, p service.ListParams) ([]service.ThreadSummary, error)
	CreateThread(ctx context.Context, caller service.Caller, in service.ThreadInput) (service.ThreadView, error)
	GetThread(ctx context.Context, caller service.Caller, threadID string) (service.ThreadView, error)
	PostMessage(ctx context.Context, caller service.Caller, threadID, text string) (service.MessageView, error)
	GetMessage(ctx context.Context, caller service.Caller, threadID, messageID string) (service.MessageView, error)
	PostComment(ctx context.Context, caller service.Caller, threadID, messageID, text string) (service.CommentView, error)
	GetComment(ctx context.Context, caller service.Caller, threadID, messageID, commentID string) (service.CommentView, error)
	Edit(ctx context.Context, caller service.Caller, target domain.Target, p service.Patch) (service.MutationResult, error)
	Delete(ctx context.Context, caller service.Caller, target domain.Target) (service.MutationResult, error)
	Vote(ctx context.Context, caller service.Caller, target domain.Target, v domain.Vote) (service.VoteResult, error)
}

var _ Board = (*service.Service)(nil)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Banner handles GET / on the service root.
func Banner() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(BannerText))
	}
}

// Routes builds the board router. Authentication middleware is installed
// by the caller.
func Routes(b Board, log *zap.Logger) chi.Router {
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()

	r.Get("/", ListThreads(b, log))
	r.Post("/", CreateThread(b, log))

	r.Route("/{threadID}", func(r chi.Router) {
		r.Get("/", GetThread(b, log))
		r.Put("/", Edit(b, log))
		r.Delete("/", Delete(b, log))
		r.Post("/", PostMessage(b, log))
		r.Put("/vote", Vote(b, log, domain.VoteUp))
		r.Delete("/vote", Vote(b, log, domain.VoteDown))

		r.Route("/{messageID}", func(r chi.Router) {
			r.Get("/", GetMessage(b, log))
			r.Put("/", Edit(b, log))
			r.Delete("/", Delete(b, log))
			r.Post("/", PostComment(b, log))
			r.Put("/vote", Vote(b, log, domain.VoteUp))
			r.Delete("/vote", Vote(b, log, domain.VoteDown))

			r.Route("/{commentID}", func(r chi.Router) {
				r.Get("/", GetComment(b, log))
				r.Put("/", Edit(b, log))
				r.Delete("/", Delete(b, log))
				r.Put("/vote", Vote(b, log, domain.VoteUp))
				r.Delete("/vote", Vote(b, log, domain.VoteDown))
			})
		})
	})
	return r
}

func caller(r *http.Request) (service.Caller, bool) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok || strings.TrimSpace(uid) == "" {
		return service.Caller{}, false
	}
	return service.Caller{UserID: uid, Token: auth.UserTokenFromContext(r.Context())}, true
}

func target(r *http.Request) domain.Target {
	return domain.Target{
		ThreadID:  strings.TrimSpace(chi.URLParam(r, "threadID")),
		MessageID: strings.TrimSpace(chi.URLParam(r, "messageID")),
		CommentID: strings.TrimSpace(chi.URLParam(r, "commentID")),
	}
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get(key)))
	if err != nil {
		return 0
	}
	return n
}

// decodeJSON reads a JSON body of at most 1 MiB into T and validates its
// struct tags. An empty body decodes to the zero value.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&v)
	if err != nil && !errors.Is(err, io.EOF) {
		api.BadRequest(w, "INVALID_JSON", "invalid JSON", httpserver.RequestIDFromContext(r.Context()), nil)
		return v, false
	}
	if err := validate.Struct(v); err != nil {
		var fields []string
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
		}
		api.ValidationFailed(w, httpserver.RequestIDFromContext(r.Context()), fields)
		return v, false
	}
	return v, true
}

// writeError maps service errors onto the API envelope.
func writeError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	if log == nil {
		log = zap.NewNop()
	}
	rid := httpserver.RequestIDFromContext(r.Context())
	switch {
	case errors.Is(err, domain.ErrValidation):
		api.BadRequest(w, "VALIDATION_ERROR", err.Error(), rid, nil)
	case errors.Is(err, domain.ErrNotFound):
		api.NotFound(w, "NOT_FOUND", err.Error(), rid)
	case errors.Is(err, domain.ErrNotOwner):
		api.Forbidden(w, "NOT_OWNER", "content is not owned by the caller", rid)
	case errors.Is(err, domain.ErrUpstream):
		log.Warn("identity service failure", zap.String("request_id", rid), zap.Error(err))
		api.BadGateway(w, "UPSTREAM_ERROR", "identity service unavailable", rid)
	default:
		log.Error("board request failed", zap.String("request_id", rid), zap.Error(err))
		api.Internal(w, rid)
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	api.Unauthorized(w, "UNAUTHORIZED", "authentication required", httpserver.RequestIDFromContext(r.Context()))
}
