// Package httpapi exposes the member endpoints over HTTP. Signup and login
// are public; every other route sits behind the authenticator filter and the
// must-be-authenticated gate. Responses use the service-wide envelope
// {"result","msg","data"}.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	authgate "github.com/pressops/authgate"
	"github.com/pressops/authgate/middleware"
)

// Handler owns the HTTP surface. Construct once at startup.
type Handler struct {
	engine   *authgate.Engine
	validate *validator.Validate
	log      zerolog.Logger
}

// NewHandler creates a Handler around a built engine.
func NewHandler(engine *authgate.Engine, log zerolog.Logger) *Handler {
	return &Handler{
		engine:   engine,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log,
	}
}

// Routes assembles the member router. The authenticator filter runs on
// every route; only the grouped routes additionally require that it
// succeeded.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(h.engine))

	r.Post("/api/v1/member/signup", h.handleSignup)
	r.Post("/api/v1/member/login", h.handleLogin)

	r.Group(func(protected chi.Router) {
		protected.Use(middleware.RequireAuth(h.unauthorized))
		protected.Post("/api/v1/member/logout", h.handleLogout)
	})

	return r
}

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCredentials(w, r)
	if !ok {
		return
	}

	if err := h.engine.Signup(r.Context(), req.Email, req.Password); err != nil {
		h.failFrom(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "signup completed", nil)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCredentials(w, r)
	if !ok {
		return
	}

	pair, err := h.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.failFrom(w, err)
		return
	}

	headers := h.engine.Headers()
	w.Header().Set(headers.Access, pair.AccessToken)
	w.Header().Set(headers.Refresh, pair.RefreshToken)
	writeSuccess(w, http.StatusOK, "login completed", nil)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	headers := h.engine.Headers()

	err := h.engine.Logout(r.Context(),
		id.Email,
		r.Header.Get(headers.Access),
		r.Header.Get(headers.Refresh),
	)
	if err != nil {
		h.failFrom(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "logout completed", nil)
}

func (h *Handler) decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFail(w, http.StatusBadRequest, "malformed request body")
		return req, false
	}
	if err := h.validate.Struct(req); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid email or password format")
		return req, false
	}
	return req, true
}

// failFrom maps engine errors onto client-visible results. Signup/login
// failures stay distinct; token problems never reach here (the filter
// collapses them into the 401 entry point).
func (h *Handler) failFrom(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, authgate.ErrDuplicateAccount):
		writeFail(w, http.StatusConflict, "email already registered")
	case errors.Is(err, authgate.ErrAccountNotFound):
		writeFail(w, http.StatusNotFound, "account not found")
	case errors.Is(err, authgate.ErrCredentialMismatch):
		writeFail(w, http.StatusUnauthorized, "incorrect password")
	case errors.Is(err, authgate.ErrProvisioningFailed):
		writeFail(w, http.StatusBadGateway, "member provisioning failed")
	case errors.Is(err, authgate.ErrStoreUnavailable):
		writeFail(w, http.StatusServiceUnavailable, "session store unavailable")
	default:
		h.log.Error().Err(err).Msg("unhandled request failure")
		writeFail(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) unauthorized(w http.ResponseWriter, _ *http.Request) {
	writeFail(w, http.StatusUnauthorized, "authentication required")
}
