package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mailframe/newsletter-api/internal/auth"
	"github.com/mailframe/newsletter-api/internal/idempotency"
	"github.com/mailframe/newsletter-api/internal/newsletter/app"
	"github.com/mailframe/newsletter-api/internal/newsletter/domain"
	"github.com/mailframe/newsletter-api/internal/newsletter/ports"
)

// Handler exposes HTTP endpoints for newsletter operations.
type Handler struct {
	service  *app.Service
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(service *app.Service) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
	}
}

// Register binds the newsletter handlers to the provided ServeMux. The
// /admin routes need an authenticated user id in the request context, so
// they are wrapped with adminMiddleware (normally auth.Middleware).
func (h *Handler) Register(mux *http.ServeMux, adminMiddleware func(http.Handler) http.Handler) {
	newsletter := http.Handler(http.HandlerFunc(h.handleNewsletter))
	if adminMiddleware != nil {
		newsletter = adminMiddleware(newsletter)
	}
	mux.Handle("/admin/newsletter", newsletter)
	mux.HandleFunc("/subscriptions", h.handleSubscriptions)
	mux.HandleFunc("/subscriptions/confirm", h.handleConfirm)
	mux.HandleFunc("/subscriptions/", h.handleSubscriberByID)
}

func (h *Handler) handleNewsletter(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.newsletterForm(w, r)
	case http.MethodPost:
		h.publishNewsletter(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type publishForm struct {
	Title          string `validate:"required"`
	HTMLContent    string `validate:"required"`
	TextContent    string `validate:"required"`
	IdempotencyKey string `validate:"required"`
}

// publishNewsletter runs the guarded fan-out. The idempotency claim is held
// open across the whole delivery loop: a duplicate submission for the same
// (user, key) blocks until this one finishes, then replays the saved
// response instead of sending a second batch of emails.
func (h *Handler) publishNewsletter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form payload")
		return
	}

	form := publishForm{
		Title:          r.PostFormValue("title"),
		HTMLContent:    r.PostFormValue("html_content"),
		TextContent:    r.PostFormValue("text_content"),
		IdempotencyKey: r.PostFormValue("idempotency_key"),
	}
	if err := h.validate.Struct(form); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key, err := idempotency.ParseKey(form.IdempotencyKey)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	claim, saved, err := h.service.StartPublish(ctx, userID, key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if saved != nil {
		_ = saved.Write(w)
		return
	}
	// On every failure path below the deferred rollback frees the slot, so a
	// retry with the same key re-executes instead of replaying an error.
	defer func() { _ = claim.Rollback(ctx) }()

	issue := domain.Issue{
		Title:       form.Title,
		HTMLContent: form.HTMLContent,
		TextContent: form.TextContent,
	}
	if _, err := h.service.PublishIssue(ctx, issue); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	snapshot := idempotency.ResponseSnapshot{
		StatusCode: http.StatusSeeOther,
	}.Header("Location", "/admin/newsletter")

	if err := claim.Complete(ctx, snapshot); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	_ = snapshot.Write(w)
}

const newsletterFormPage = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta http-equiv="content-type" content="text/html; charset=utf-8" />
    <title>Send Newsletter</title>
</head>
<body>
    <form action="/admin/newsletter" method="post">
        <label>Title
            <input type="text" placeholder="Enter title of newsletter issue" name="title" />
        </label>
        <br/>
        <label>HTML body
            <textarea placeholder="Enter HTML content of newsletter issue" name="html_content"></textarea>
        </label>
        <br/>
        <label>Plain text body
            <textarea placeholder="Enter plain text content of newsletter issue" name="text_content"></textarea>
        </label>
        <br/>
        <input hidden type="text" name="idempotency_key" value="%s" />
        <button type="submit">Publish newsletter</button>
    </form>
</body>
</html>`

// newsletterForm serves the publish form with a fresh idempotency key baked
// in, so retries and double-clicks of one rendered form share the same key.
func (h *Handler) newsletterForm(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, newsletterFormPage, uuid.NewString())
}

type subscribeForm struct {
	Name  string `validate:"required"`
	Email string `validate:"required,email"`
}

func (h *Handler) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form payload")
		return
	}

	form := subscribeForm{
		Name:  r.PostFormValue("name"),
		Email: r.PostFormValue("email"),
	}
	if err := h.validate.Struct(form); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	subscriber, err := h.service.Subscribe(r.Context(), app.SubscribeInput{
		Name:  form.Name,
		Email: form.Email,
	})
	if err != nil {
		if errors.Is(err, ports.ErrDuplicateEmail) {
			writeError(w, http.StatusConflict, "email already subscribed")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"subscriber": subscriber})
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	token := r.URL.Query().Get("token")
	id, err := uuid.Parse(token)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid confirmation token")
		return
	}

	if err := h.service.ConfirmSubscriber(r.Context(), id); err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			writeError(w, http.StatusNotFound, "subscriber not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "confirmed"})
}

func (h *Handler) handleSubscriberByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id, err := uuid.Parse(strings.TrimPrefix(r.URL.Path, "/subscriptions/"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid subscriber id")
		return
	}

	subscriber, err := h.service.GetSubscriber(r.Context(), id)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			writeError(w, http.StatusNotFound, "subscriber not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"subscriber": subscriber})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
