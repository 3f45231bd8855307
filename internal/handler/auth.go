package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/matchday-predictor/internal/auth"
	"github.com/sakif/matchday-predictor/internal/model"
	"github.com/sakif/matchday-predictor/internal/service"
)

// AuthHandler manages PIN login and session management.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLogin     → register-or-login, issue the JWT (body + cookie)
//   - HandleLogout    → clear the JWT cookie
//   - HandleAuthCheck → report who the token belongs to
type AuthHandler struct {
	auth         *service.AuthService
	cookieTTL    time.Duration
	secureCookie bool
	logger       *slog.Logger
}

// NewAuthHandler creates an AuthHandler. cookieTTL should match the token
// TTL so the browser drops the cookie when the token expires.
func NewAuthHandler(svc *service.AuthService, cookieTTL time.Duration, secureCookie bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:         svc,
		cookieTTL:    cookieTTL,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

// LoginRequest is the body of POST /auth/.
type LoginRequest struct {
	Username string `json:"username"`
	Pin      string `json:"pin"`
}

// LoginResponse is returned on successful login or registration.
type LoginResponse struct {
	Message     string      `json:"message"`
	AccessToken string      `json:"access_token"`
	User        *model.User `json:"user"`
}

// AuthCheckResponse is returned by GET /auth/auth-check.
type AuthCheckResponse struct {
	Authenticated bool        `json:"authenticated"`
	User          *model.User `json:"user"`
}

// HandleLogin logs a user in, registering the username on first use.
//
// HTTP: POST /auth/
//
//	201 {"message":"User created and logged in", "access_token":..., "user":...}
//	200 {"message":"Login successful", ...}
//	401 {"error":"unauthorized","message":"Invalid Pin"}
//
// The token is returned in the body for API clients and set as an HttpOnly
// cookie for the browser frontend.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.auth.RegisterOrLogin(r.Context(), req.Username, req.Pin)
	if err != nil {
		logFailure(h.logger, "login failed", err)
		writeError(w, err)
		return
	}

	h.setTokenCookie(w, result.Token, int(h.cookieTTL.Seconds()))

	status, message := http.StatusOK, "Login successful"
	if result.Created {
		status, message = http.StatusCreated, "User created and logged in"
	}
	writeJSON(w, status, LoginResponse{
		Message:     message,
		AccessToken: result.Token,
		User:        result.User,
	})
}

// HandleLogout clears the JWT cookie.
//
// HTTP: POST /auth/logout
//
// Tokens are stateless, so the token itself stays valid until it expires;
// logout only removes the browser's copy.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.setTokenCookie(w, "", -1)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logged out"})
}

// HandleAuthCheck returns the user the request's token belongs to.
//
// HTTP: GET /auth/auth-check
// Auth: Required (RequireAuth middleware sets userID in context)
func (h *AuthHandler) HandleAuthCheck(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	user, err := h.auth.CurrentUser(r.Context(), userID)
	if err != nil {
		logFailure(h.logger, "auth check failed", err, slog.String("userID", userID))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, AuthCheckResponse{Authenticated: true, User: user})
}

func (h *AuthHandler) setTokenCookie(w http.ResponseWriter, value string, maxAge int) {
	// HttpOnly keeps the token away from page scripts. SameSite=Lax stops it
	// riding along on cross-site POSTs.
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
