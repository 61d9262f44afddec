package handlers

import (
	"errors"
	"net/http"
	"strings"

	"garment-studio/internal/common/logger"
	"garment-studio/internal/studio/models"
	"garment-studio/internal/studio/repository"
	"garment-studio/internal/studio/service"

	"github.com/gofiber/fiber/v3"
)

// ============================================================
// Auth Handler
// ============================================================

const userIDKey = "userID"

type AuthHandler struct {
	repo     *repository.Repository
	sessions *service.SessionManager
	log      *logger.Logger
}

func NewAuthHandler(repo *repository.Repository, sessions *service.SessionManager, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		repo:     repo,
		sessions: sessions,
		log:      log.With("handler", "auth"),
	}
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type registerRequest struct {
	Login       string `json:"login"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Login выдает токен по паре login/password.
func (h *AuthHandler) Login(c fiber.Ctx) error {
	var req loginRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	if req.Login == "" || req.Password == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "login and password required"})
	}

	user, err := h.repo.GetByCredentials(c.Context(), req.Login, req.Password)
	if err != nil {
		if !errors.Is(err, repository.ErrInvalidLogin) {
			h.log.Error("login lookup failed", "login", req.Login, "error", err)
		}
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "invalid credentials"})
	}

	h.log.Info("user logged in", "user_id", user.ID)
	return c.JSON(loginResponse{Token: h.sessions.Issue(user.ID), User: user})
}

// Register заводит пользователя и сразу выдаёт токен.
func (h *AuthHandler) Register(c fiber.Ctx) error {
	var req registerRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	req.Login = strings.TrimSpace(req.Login)
	if req.Login == "" || len(req.Password) < 4 {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "login and password (4+ chars) required"})
	}

	user, err := h.repo.CreateUser(c.Context(), req.Login, req.Password, req.DisplayName, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrLoginTaken) {
			return c.Status(http.StatusConflict).JSON(fiber.Map{"error": "login already taken"})
		}
		h.log.Error("register failed", "login", req.Login, "error", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create user"})
	}

	return c.Status(http.StatusCreated).JSON(loginResponse{Token: h.sessions.Issue(user.ID), User: user})
}

func (h *AuthHandler) Logout(c fiber.Ctx) error {
	if token, ok := bearerToken(c); ok {
		h.sessions.Revoke(token)
	}
	return c.SendStatus(http.StatusNoContent)
}

// GetUser возвращает данные пользователя.
func (h *AuthHandler) GetUser(c fiber.Ctx) error {
	targetID, err := ownUserParam(c)
	if err != nil {
		return err
	}

	user, err := h.repo.GetUserByID(c.Context(), targetID)
	if err != nil {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
	}
	return c.JSON(user)
}

// RequireUser пропускает запрос только с действующим bearer-токеном.
func (h *AuthHandler) RequireUser(c fiber.Ctx) error {
	token, ok := bearerToken(c)
	if !ok {
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	userID, ok := h.sessions.Resolve(token)
	if !ok {
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	c.Locals(userIDKey, userID)
	return c.Next()
}

// ============================================================
// Helpers
// ============================================================

func bearerToken(c fiber.Ctx) (string, bool) {
	auth := c.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	return token, token != ""
}

func currentUser(c fiber.Ctx) string {
	id, _ := c.Locals(userIDKey).(string)
	return id
}

// ownUserParam — :id должен совпадать с владельцем токена.
func ownUserParam(c fiber.Ctx) (string, error) {
	targetID := c.Params("id")
	if targetID == "" || targetID != currentUser(c) {
		return "", fiber.NewError(http.StatusForbidden, "forbidden")
	}
	return targetID, nil
}
