package handlers

import (
	"log/slog"
	"net/http"

	"github.com/paolo-abarca/holbertonschool-files-manager/internal/api/middleware"
	"github.com/paolo-abarca/holbertonschool-files-manager/internal/service"
)

// AuthHandler — вход, выход и регистрация пользователей.
type AuthHandler struct {
	auth        *service.AuthService
	maxBodySize int64
	logger      *slog.Logger
}

// NewAuthHandler создаёт обработчик аутентификации.
func NewAuthHandler(auth *service.AuthService, maxBodySize int64, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, maxBodySize: maxBodySize, logger: logger}
}

// Connect обрабатывает GET /connect: Basic-аутентификация → {"token": ...}.
func (h *AuthHandler) Connect(w http.ResponseWriter, r *http.Request) {
	token, err := h.auth.Authenticate(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// Disconnect обрабатывает GET /disconnect: закрывает сессию X-Token, 204.
func (h *AuthHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Revoke(r.Context(), r.Header.Get(middleware.TokenHeader)); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// registerRequest — тело POST /users.
type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (req *registerRequest) reset() { *req = registerRequest{} }

// CreateUser обрабатывает POST /users → 201 {"id", "email"}.
func (h *AuthHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		writeDecodeError(w)
		return
	}

	user, err := h.auth.RegisterUser(r.Context(), service.RegisterParams{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, user.View())
}

// Me обрабатывает GET /users/me → {"id", "email"} пользователя сессии.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.GetUser(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user.View())
}
