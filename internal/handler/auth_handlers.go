package handler

import (
	"net/http"

	"github.com/qwc/lisenssit/internal/auth"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		h.jsonError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	for _, a := range h.authenticators {
		user, err := a.Authenticate(r.Context(), req.Username, req.Password)
		if err != nil {
			continue
		}

		if err := h.sessionMgr.CreateSession(r.Context(), w, user.ID); err != nil {
			h.logger.Error("creating session", "user", user.Username, "error", err)
			h.jsonError(w, http.StatusInternalServerError, "could not create session")
			return
		}

		// A successful login clears earlier failed attempts from the limiter.
		h.loginLimiter.Reset(clientKey(r))

		h.logger.Info("user logged in", "user", user.Username, "authenticator", a.Name())
		h.jsonResponse(w, http.StatusOK, toUserJSON(user))
		return
	}

	h.jsonError(w, http.StatusUnauthorized, "invalid username or password")
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessionMgr.DestroySession(w, r)
	h.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	h.jsonResponse(w, http.StatusOK, toUserJSON(user))
}

func (h *Handler) handleOAuth2Login(w http.ResponseWriter, r *http.Request) {
	if h.oauth2Auth == nil {
		h.jsonError(w, http.StatusNotFound, "oauth2 is not enabled")
		return
	}

	url, err := h.oauth2Auth.GenerateAuthURL()
	if err != nil {
		h.logger.Error("generating oauth2 auth url", "error", err)
		h.jsonError(w, http.StatusInternalServerError, "could not start oauth2 flow")
		return
	}

	http.Redirect(w, r, url, http.StatusFound)
}

func (h *Handler) handleOAuth2Callback(w http.ResponseWriter, r *http.Request) {
	if h.oauth2Auth == nil {
		h.jsonError(w, http.StatusNotFound, "oauth2 is not enabled")
		return
	}

	if !h.oauth2Auth.ValidateState(r.URL.Query().Get("state")) {
		h.jsonError(w, http.StatusBadRequest, "invalid oauth2 state")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.jsonError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	user, err := h.oauth2Auth.HandleCallback(r.Context(), code)
	if err != nil {
		h.logger.Error("oauth2 callback failed", "error", err)
		h.jsonError(w, http.StatusUnauthorized, "oauth2 login failed")
		return
	}

	if err := h.sessionMgr.CreateSession(r.Context(), w, user.ID); err != nil {
		h.logger.Error("creating session", "user", user.Username, "error", err)
		h.jsonError(w, http.StatusInternalServerError, "could not create session")
		return
	}

	h.logger.Info("user logged in", "user", user.Username, "authenticator", "oauth2")
	http.Redirect(w, r, "/", http.StatusFound)
}
