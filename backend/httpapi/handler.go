package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	goSession "github.com/MrEthical07/goSession"
)

type handler struct {
	backend goSession.Backend
	logger  logrus.FieldLogger
}

// NewHandler serves backend over the routes documented in the package.
func NewHandler(backend goSession.Backend, logger logrus.FieldLogger) http.Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	h := &handler{backend: backend, logger: logger.WithField("component", "auth_handler")}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+PathLogin, h.login)
	mux.HandleFunc("POST "+PathRefresh, h.refresh)
	mux.HandleFunc("GET "+PathStatus, h.status)
	mux.HandleFunc("POST "+PathLogout, h.logout)
	return mux
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var creds goSession.Credentials
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	res, err := h.backend.Login(r.Context(), creds)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	next, err := h.backend.Refresh(r.Context(), token)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenBody{Token: next})
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeJSON(w, http.StatusOK, goSession.StatusResult{})
		return
	}
	res, err := h.backend.Status(r.Context(), token)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	if err := h.backend.Logout(r.Context(), token); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// fail maps backend errors to responses. Only *BackendError reasons reach
// the wire; anything else is logged and reported as a bad gateway.
func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var be *goSession.BackendError
	if errors.As(err, &be) && be.StatusCode >= 400 && be.StatusCode <= 599 {
		writeError(w, be.StatusCode, be.Reason)
		return
	}
	h.logger.WithError(err).WithField("path", r.URL.Path).Error("auth backend failed")
	writeError(w, http.StatusBadGateway, "authentication backend unavailable")
}

func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(h[len(prefix):])
	return token, token != ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, reason string) {
	writeJSON(w, status, errorBody{Error: reason})
}
