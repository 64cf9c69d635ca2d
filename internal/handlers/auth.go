package handlers

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/pliu/chatapp/internal/middleware"
	"github.com/pliu/chatapp/internal/models"
	"github.com/pliu/chatapp/internal/store"
)

type TokenSigner interface {
	Sign(userID string) (string, error)
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignupRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Bio      string `json:"bio"`
}

type UpdateProfileRequest struct {
	FullName   string `json:"fullName"`
	Bio        string `json:"bio"`
	ProfilePic string `json:"profilePic"`
}

type AuthHandler struct {
	Store  store.Store
	Tokens TokenSigner
	Log    *zap.Logger
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)
	if req.FullName == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Missing details")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.Log.Error("hash password", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	user := &models.User{
		FullName: req.FullName,
		Email:    req.Email,
		Password: string(hashedPassword),
		Bio:      req.Bio,
	}
	if err := h.Store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusConflict, "Account already exists")
			return
		}
		h.Log.Error("create user", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	token, err := h.Tokens.Sign(user.ID)
	if err != nil {
		h.Log.Error("sign token", zap.String("user_id", user.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"userData": user,
		"token":    token,
		"message":  "Account created successfully",
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds Credentials
	if err := decode(r, &creds); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.Store.GetUserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(creds.Email)))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			h.Log.Error("load user by email", zap.Error(err))
		}
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(creds.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.Tokens.Sign(user.ID)
	if err != nil {
		h.Log.Error("sign token", zap.String("user_id", user.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"userData": user,
		"token":    token,
		"message":  "Login successful",
	})
}

// CheckAuth echoes the caller resolved by ProtectRoute.
func (h *AuthHandler) CheckAuth(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req UpdateProfileRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.Store.UpdateProfile(r.Context(), user.ID,
		strings.TrimSpace(req.FullName), strings.TrimSpace(req.Bio), strings.TrimSpace(req.ProfilePic))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		h.Log.Error("update profile", zap.String("user_id", user.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": updated})
}
