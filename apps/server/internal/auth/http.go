package auth

import (
	"errors"
	"net/http"

	"clocktower-lite/apps/server/internal/httpx"
)

type HTTPHandler struct {
	accounts Service
}

type credentialsRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type sessionResponse struct {
	AccountID    uint64 `json:"account_id"`
	Name         string `json:"name"`
	SessionToken string `json:"session_token"`
}

type meResponse struct {
	AccountID uint64 `json:"account_id"`
	Name      string `json:"name"`
}

func NewHTTPHandler(accounts Service) *HTTPHandler {
	return &HTTPHandler{accounts: accounts}
}

func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/auth/register", h.handleRegister)
	mux.HandleFunc("/api/auth/login", h.handleLogin)
	mux.HandleFunc("/api/auth/logout", h.handleLogout)
	mux.HandleFunc("/api/auth/me", h.handleMe)
}

// Storyteller resolves the bearer session of r, or writes 401 and returns ok=false.
func (h *HTTPHandler) Storyteller(w http.ResponseWriter, r *http.Request) (accountID uint64, name string, ok bool) {
	token := httpx.BearerToken(r)
	if token == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "missing session token")
		return 0, "", false
	}
	accountID, name, ok = h.accounts.ResolveSession(token)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid session token")
	}
	return accountID, name, ok
}

func (h *HTTPHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !httpx.RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req credentialsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	accountID, token, err := h.accounts.Register(req.Name, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidName), errors.Is(err, ErrInvalidPassword):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, ErrNameTaken):
		httpx.WriteError(w, http.StatusConflict, err.Error())
		return
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "register failed")
		return
	}
	h.writeSession(w, accountID, token)
}

func (h *HTTPHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !httpx.RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req credentialsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	accountID, token, err := h.accounts.Login(req.Name, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid name or password")
		return
	}
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "login failed")
		return
	}
	h.writeSession(w, accountID, token)
}

func (h *HTTPHandler) writeSession(w http.ResponseWriter, accountID uint64, token string) {
	_, name, _ := h.accounts.ResolveSession(token)
	httpx.WriteJSON(w, http.StatusOK, sessionResponse{
		AccountID:    accountID,
		Name:         name,
		SessionToken: token,
	})
}

func (h *HTTPHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if !httpx.RequireMethod(w, r, http.MethodPost) {
		return
	}
	token := httpx.BearerToken(r)
	if token == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "missing session token")
		return
	}
	h.accounts.Logout(token)
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	if !httpx.RequireMethod(w, r, http.MethodGet) {
		return
	}
	accountID, name, ok := h.Storyteller(w, r)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, meResponse{AccountID: accountID, Name: name})
}
