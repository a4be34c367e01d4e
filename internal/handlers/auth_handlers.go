package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ARDEV04/Personal-file-manager/internal/auth"
	"github.com/ARDEV04/Personal-file-manager/internal/database"
	"github.com/ARDEV04/Personal-file-manager/internal/logger"
	"github.com/ARDEV04/Personal-file-manager/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository is the part of *database.Users the auth endpoints need.
type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

type AuthHandler struct {
	Users  UserRepository
	Tokens *auth.Tokens
	log    zerolog.Logger
}

func NewAuthHandler(users UserRepository, tokens *auth.Tokens) *AuthHandler {
	return &AuthHandler{Users: users, Tokens: tokens, log: logger.Component("auth")}
}

// Register creates an account. New accounts can edit the tree.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Password == "" || req.Email == "" || req.Username == "" {
		writeError(w, http.StatusBadRequest, "Username, email, and password are required")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to hash password")
		writeError(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	user := models.User{
		Username:     req.Username,
		Email:        req.Email,
		Role:         models.RoleEditor,
		PasswordHash: string(hashedPassword),
	}
	if err := h.Users.Create(r.Context(), &user); err != nil {
		if errors.Is(err, database.ErrUserExists) {
			writeError(w, http.StatusConflict, "Email or username already exists")
			return
		}
		h.log.Error().Err(err).Msg("failed to insert user")
		writeError(w, http.StatusInternalServerError, "Failed to register user")
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// Login exchanges credentials for a token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.Users.FindByEmail(r.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, database.ErrUserNotFound) {
			h.log.Error().Err(err).Msg("failed to look up user")
		}
		// Same answer for unknown users and wrong passwords.
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := h.Tokens.CreateJWT(user.ID.String(), user.Username, user.Role)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to create token")
		writeError(w, http.StatusInternalServerError, "Failed to create token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  user,
	})
}
