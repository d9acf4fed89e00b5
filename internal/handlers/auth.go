package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"sensitive-scanner/internal/database"
	"sensitive-scanner/internal/logging"
	"sensitive-scanner/internal/metrics"
)

// LoginRequest represents a login request with PIN only
type LoginRequest struct {
	PIN string `json:"pin"`
}

// SetupRequest represents an initial setup request to create the PIN
type SetupRequest struct {
	PIN string `json:"pin"`
}

// PINChangeRequest represents a request to change the PIN
type PINChangeRequest struct {
	CurrentPIN string `json:"currentPin"`
	NewPIN     string `json:"newPin"`
}

// AuthResponse represents the response from authentication endpoints
type AuthResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	ExpiresIn int    `json:"expiresIn,omitempty"` // Seconds until session expires
}

const (
	// SessionCookieName is the name of the session cookie
	SessionCookieName = "sensitive_scanner_session"

	minPINLength = 4
	maxPINLength = 72
)

// CheckSetupRequired returns whether initial setup is needed
func (h *Handlers) CheckSetupRequired(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	needsSetup := !h.db.HasUser(ctx)

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]bool{
		"needsSetup": needsSetup,
	})
}

// Setup creates the initial PIN
func (h *Handlers) Setup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Only allow setup if no user exists
	if h.db.HasUser(ctx) {
		http.Error(w, "Setup already completed", http.StatusForbidden)
		return
	}

	var req SetupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if len(req.PIN) < minPINLength {
		http.Error(w, "PIN must be at least 4 characters", http.StatusBadRequest)
		return
	}

	if len(req.PIN) > maxPINLength {
		http.Error(w, "PIN must not exceed 72 characters", http.StatusBadRequest)
		return
	}

	if err := h.db.CreateUser(ctx, req.PIN); err != nil {
		logging.Error("Failed to create user: %v", err)
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	logging.Info("Initial PIN configured")

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, AuthResponse{
		Success: true,
		Message: "PIN configured successfully",
	})
}

// Login authenticates with PIN
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.db.ValidatePIN(ctx, req.PIN)
	if err != nil {
		logging.Warn("Failed login attempt")
		metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
		http.Error(w, "Invalid PIN", http.StatusUnauthorized)
		return
	}

	metrics.AuthAttemptsTotal.WithLabelValues("success").Inc()

	session, err := h.db.CreateSession(ctx, user.ID)
	if err != nil {
		logging.Error("Failed to create session: %v", err)
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	logging.Info("User logged in, session expires in %v", database.GetSessionDuration())

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, AuthResponse{
		Success:   true,
		ExpiresIn: int(database.GetSessionDuration().Seconds()),
	})
}

// Logout ends the current session
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cookie, err := r.Cookie(SessionCookieName)
	if err == nil && cookie.Value != "" {
		// Best-effort session cleanup - don't fail logout if this errors
		if err := h.db.DeleteSession(ctx, cookie.Value); err != nil {
			logging.Error("failed to delete session during logout: %v", err)
		}
	}

	clearSessionCookie(w)

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, AuthResponse{
		Success: true,
		Message: "Logged out successfully",
	})
}

// CheckAuth verifies the current session
func (h *Handlers) CheckAuth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if _, err := h.db.ValidateSession(ctx, cookie.Value); err != nil {
		clearSessionCookie(w)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, AuthResponse{
		Success:   true,
		ExpiresIn: int(database.GetSessionDuration().Seconds()),
	})
}

// ChangePIN handles PIN change requests
func (h *Handlers) ChangePIN(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req PINChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if _, err := h.db.ValidatePIN(ctx, req.CurrentPIN); err != nil {
		logging.Warn("Failed PIN change attempt - invalid current PIN")
		http.Error(w, "Current PIN is incorrect", http.StatusUnauthorized)
		return
	}

	if len(req.NewPIN) < minPINLength {
		http.Error(w, "New PIN must be at least 4 characters", http.StatusBadRequest)
		return
	}

	if len(req.NewPIN) > maxPINLength {
		http.Error(w, "New PIN must not exceed 72 characters", http.StatusBadRequest)
		return
	}

	if err := h.db.UpdatePIN(ctx, req.NewPIN); err != nil {
		logging.Error("Failed to update PIN: %v", err)
		http.Error(w, "Failed to update PIN", http.StatusInternalServerError)
		return
	}

	logging.Info("PIN changed, all sessions invalidated")

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, AuthResponse{
		Success: true,
		Message: "PIN changed successfully, please log in again",
	})
}

// AuthMiddleware protects routes that require authentication
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		if _, err := h.db.ValidateSession(ctx, cookie.Value); err != nil {
			clearSessionCookie(w)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// isPublicPath reports whether a path is reachable without a session.
func isPublicPath(path string) bool {
	if strings.HasPrefix(path, "/api/auth/") {
		return true
	}
	switch path {
	case "/health", "/healthz", "/livez", "/readyz", "/version", "/metrics":
		return true
	}
	return false
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}
