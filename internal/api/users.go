package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"inkwell/internal/auth"
	"inkwell/internal/db"
	"inkwell/internal/models"
)

type AuthHandler struct {
	users  *db.UserRepository
	tokens *auth.TokenService
}

func NewAuthHandler(users *db.UserRepository, tokens *auth.TokenService) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens}
}

type RegistrationRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	FullName string `json:"full_name" validate:"required,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type UserOut struct {
	Username string  `json:"username"`
	FullName string  `json:"full_name"`
	Image    *string `json:"image,omitempty"`
	IsActive bool    `json:"is_active"`
}

func toUserOut(u *models.User) UserOut {
	return UserOut{
		Username: u.Username,
		FullName: u.FullName,
		Image:    u.Image,
		IsActive: u.IsActive,
	}
}

// PublicUserOut is the author/commenter profile embedded in post and comment
// responses.
type PublicUserOut struct {
	Username string  `json:"username"`
	FullName string  `json:"full_name"`
	Image    *string `json:"image,omitempty"`
}

func toPublicUserOut(u *models.User) *PublicUserOut {
	if u == nil {
		return nil
	}
	return &PublicUserOut{
		Username: u.Username,
		FullName: u.FullName,
		Image:    u.Image,
	}
}

// POST /api/v1/registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegistrationRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		validationError(w, err.Error())
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		slog.Error("error hashing password", "error", err)
		internalError(w)
		return
	}

	user := &models.User{
		Username:  req.Username,
		FullName:  req.FullName,
		IsActive:  true,
		Password:  &hash,
		RandomStr: models.NewSessionEpoch(),
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			writeError(w, http.StatusBadRequest, ErrCodeUsernameExists, "Username already exists")
			return
		}
		slog.Error("error creating user", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusCreated, toUserOut(user))
}

type TokenRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// POST /api/v1/token
//
// An unknown username and a wrong password produce the same response, so the
// endpoint never reveals whether an account exists.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		validationError(w, err.Error())
		return
	}

	user, err := h.users.FindByUsername(r.Context(), req.Username)
	if errors.Is(err, db.ErrNotFound) {
		unauthorized(w, "Invalid credentials")
		return
	}
	if err != nil {
		slog.Error("error finding user", "error", err)
		internalError(w)
		return
	}

	if user.Password == nil || !auth.VerifyPassword(req.Password, *user.Password) {
		unauthorized(w, "Invalid credentials")
		return
	}

	accessToken, err := h.tokens.IssueAccess(user)
	if err != nil {
		slog.Error("error issuing access token", "error", err, "user_id", user.ID.Hex())
		internalError(w)
		return
	}
	refreshToken, err := h.tokens.IssueRefresh(user)
	if err != nil {
		slog.Error("error issuing refresh token", "error", err, "user_id", user.ID.Hex())
		internalError(w)
		return
	}

	if err := h.users.SetLastLogin(r.Context(), user.ID, time.Now()); err != nil {
		slog.Error("error updating last login", "error", err, "user_id", user.ID.Hex())
	}

	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}

type UpdateAccessTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// POST /api/v1/update-access-token
func (h *AuthHandler) UpdateAccessToken(w http.ResponseWriter, r *http.Request) {
	var req UpdateAccessTokenRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		validationError(w, err.Error())
		return
	}

	claims, err := h.tokens.Decode(req.RefreshToken)
	if err != nil {
		unauthorized(w, "Invalid refresh token")
		return
	}
	if claims.TokenType != auth.TokenRefresh {
		unauthorized(w, "Invalid refresh token")
		return
	}

	id, err := bson.ObjectIDFromHex(claims.UserID)
	if err != nil {
		unauthorized(w, "Invalid refresh token")
		return
	}

	user, err := h.users.FindByIDAndEpoch(r.Context(), id, claims.SessionEpoch)
	if errors.Is(err, db.ErrNotFound) {
		unauthorized(w, "Invalid refresh token")
		return
	}
	if err != nil {
		slog.Error("error finding user", "error", err)
		internalError(w)
		return
	}

	accessToken, err := h.tokens.IssueAccess(user)
	if err != nil {
		slog.Error("error issuing access token", "error", err, "user_id", user.ID.Hex())
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"access_token": accessToken})
}

// PUT /api/v1/logout-from-all-device
func (h *AuthHandler) LogoutEverywhere(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)

	if _, err := h.users.RotateSessionEpoch(r.Context(), user.ID); err != nil {
		slog.Error("error rotating session epoch", "error", err, "user_id", user.ID.Hex())
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out."})
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

// POST /api/v1/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)

	var req ChangePasswordRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		validationError(w, err.Error())
		return
	}

	if user.Password == nil || !auth.VerifyPassword(req.CurrentPassword, *user.Password) {
		unauthorized(w, "Invalid credentials")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		slog.Error("error hashing password", "error", err)
		internalError(w)
		return
	}
	if err := h.users.SetPassword(r.Context(), user.ID, hash); err != nil {
		slog.Error("error updating password", "error", err, "user_id", user.ID.Hex())
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated."})
}

type UserHandler struct {
	users *db.UserRepository
}

func NewUserHandler(users *db.UserRepository) *UserHandler {
	return &UserHandler{users: users}
}

// GET /api/v1/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toUserOut(CurrentUser(r)))
}

type UpdateUserRequest struct {
	FullName *string `json:"full_name" validate:"omitempty,max=255"`
	Image    *string `json:"image" validate:"omitempty,max=1024"`
}

// PATCH /api/v1/update-user
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)

	var req UpdateUserRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		validationError(w, err.Error())
		return
	}

	if err := h.users.UpdateProfile(r.Context(), user.ID, req.FullName, req.Image); err != nil {
		slog.Error("error updating profile", "error", err, "user_id", user.ID.Hex())
		internalError(w)
		return
	}

	if req.FullName != nil {
		user.FullName = *req.FullName
	}
	if req.Image != nil {
		user.Image = req.Image
	}

	writeJSON(w, http.StatusOK, toUserOut(user))
}
