package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"findash/internal/user"
	"findash/internal/user/service"
	"findash/pkg/middleware"
)

type Handler struct {
	UserService *service.UserService
	JWT         *service.JWTManager
}

func NewHandler(us *service.UserService, jwtSecret string) *Handler {
	return &Handler{
		UserService: us,
		JWT:         service.NewJWTManager(jwtSecret),
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Delete("/", h.Clear)
	r.Post("/login/guest", h.GuestLogin)
	r.With(middleware.JWTAuth(h.JWT.SecretKey)).Get("/me", h.Me)
	r.Get("/{id}", h.Get)
}

type loginResponse struct {
	*user.User
	Token string `json:"token"`
}

func (h *Handler) GuestLogin(w http.ResponseWriter, r *http.Request) {
	u, err := h.UserService.GuestLogin(r.Context())
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "failed to create guest")
		return
	}

	token, err := h.JWT.Generate(u.Username)
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "token error")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, loginResponse{User: u, Token: token})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.UserService.GetByUsername(r.Context(), middleware.UserID(r.Context()))
	h.writeUser(w, u, err)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	u, err := h.UserService.Get(r.Context(), id)
	h.writeUser(w, u, err)
}

func (h *Handler) writeUser(w http.ResponseWriter, u *user.User, err error) {
	switch {
	case errors.Is(err, user.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, err.Error())
	case err != nil:
		middleware.WriteError(w, http.StatusInternalServerError, "failed to load user")
	default:
		middleware.WriteJSON(w, http.StatusOK, u)
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 1000 {
			middleware.WriteError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}
	users, err := h.UserService.List(r.Context(), limit)
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"users": users, "count": len(users)})
}

func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.UserService.Clear(r.Context()); err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "failed to clear users")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "count": 0})
}
