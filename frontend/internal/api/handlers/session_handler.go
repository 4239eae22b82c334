package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/ginchat/ginchat/frontend/internal/apiclient"
	"github.com/ginchat/ginchat/frontend/internal/core/domain"
	"github.com/ginchat/ginchat/frontend/internal/core/services"
)

type SessionHandler struct {
	sessions domain.SessionStore
	auth     Authenticator
	validate *validator.Validate
}

func NewSessionHandler(sessions domain.SessionStore, auth Authenticator) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		auth:     auth,
		validate: validator.New(),
	}
}

type loginPayload struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type claimsView struct {
	UserID    uint       `json:"user_id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// sessionView never carries the bearer token.
type sessionView struct {
	Authenticated bool            `json:"authenticated"`
	User          json.RawMessage `json:"user"`
	Claims        *claimsView     `json:"claims"`
}

func (h *SessionHandler) view(r *http.Request, sess *domain.Session) sessionView {
	if !sess.Authenticated() {
		return sessionView{User: json.RawMessage("null")}
	}

	v := sessionView{Authenticated: true, User: sess.User}
	if len(v.User) == 0 {
		v.User = json.RawMessage("null")
	}

	claims, err := services.InspectToken(sess.Token)
	if err != nil {
		// Opaque tokens are legal; only the display loses its claims.
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("session token carries no readable claims")
		return v
	}
	v.Claims = &claimsView{
		UserID:   claims.UserID,
		Username: claims.Username,
		Email:    claims.Email,
		Role:     claims.Role,
	}
	if exp := claims.Expiry(); !exp.IsZero() {
		v.Claims.ExpiresAt = &exp
	}
	return v
}

// Get handles GET /bridge/session.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Get(r.Context())
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to read session")
		writeError(w, http.StatusInternalServerError, "Session storage unavailable")
		return
	}
	writeJSON(w, http.StatusOK, h.view(r, sess))
}

// Login handles POST /bridge/session: proxy the credentials to the backend
// and persist the session it returns.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	var in loginPayload
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if err := h.validate.Struct(in); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "A valid email and a password are required")
		return
	}

	sess, err := h.auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) {
			msg := apiErr.Message
			if msg == "" {
				msg = http.StatusText(apiErr.Status)
			}
			writeError(w, apiErr.Status, msg)
			return
		}
		logger.Warn().Err(err).Msg("login proxy failed")
		writeError(w, http.StatusBadGateway, "Backend unavailable")
		return
	}

	if err := h.sessions.Set(r.Context(), *sess); err != nil {
		logger.Error().Err(err).Msg("failed to persist session")
		writeError(w, http.StatusInternalServerError, "Session storage unavailable")
		return
	}

	logger.Info().Bool("token_present", true).Msg("session established")
	writeJSON(w, http.StatusOK, h.view(r, sess))
}

// Logout handles DELETE /bridge/session. The local session is cleared even
// when the backend cannot be told.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	sess, err := h.sessions.Get(r.Context())
	if err == nil && sess.Authenticated() {
		if err := h.auth.Logout(r.Context()); err != nil {
			logger.Warn().Err(err).Msg("backend logout failed, clearing local session anyway")
		}
	}

	if err := h.sessions.Clear(r.Context()); err != nil {
		logger.Error().Err(err).Msg("failed to clear session")
		writeError(w, http.StatusInternalServerError, "Session storage unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
