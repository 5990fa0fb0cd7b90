package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vidtube/backend/internal/apierror"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/respond"
)

const refreshTokenCookie = "refreshToken"

// CookieOptions controls the session cookies.
type CookieOptions struct {
	// Secure marks cookies HTTPS-only and allows them cross-site.
	Secure bool
}

// AuthHandler implements account and session endpoints.
type AuthHandler struct {
	Users    repositories.UserRepository
	Sessions SessionManager
	Media    mediaStore
	Cookies  CookieOptions
}

type registerForm struct {
	FullName string `form:"fullName" validate:"notblank"`
	Email    string `form:"email" validate:"notblank,email"`
	Username string `form:"username" validate:"notblank,max=32"`
	Password string `form:"password" validate:"notblank,min=8"`
}

// Register handles POST /api/v1/users/register.
func (h AuthHandler) Register(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if err := parseMultipart(w, r, 2*maxImageUpload); err != nil {
		return err
	}
	form := registerForm{
		FullName: strings.TrimSpace(r.FormValue("fullName")),
		Email:    repositories.NormalizeHandle(r.FormValue("email")),
		Username: repositories.NormalizeHandle(r.FormValue("username")),
		Password: r.FormValue("password"),
	}
	if err := check(form); err != nil {
		return err
	}

	if _, err := h.Users.FindByLogin(ctx, form.Username); err == nil {
		return apierror.Conflict("user with email or username already exists")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return storeError(err, "user")
	}
	if _, err := h.Users.FindByLogin(ctx, form.Email); err == nil {
		return apierror.Conflict("user with email or username already exists")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return storeError(err, "user")
	}

	avatar, err := h.Media.upload(ctx, r, "avatar", "avatars", true)
	if err != nil {
		return err
	}
	cover, err := h.Media.upload(ctx, r, "coverImage", "covers", false)
	if err != nil {
		h.Media.discard(ctx, avatar)
		return err
	}

	hash, err := auth.HashPassword(form.Password)
	if err != nil {
		h.Media.discard(ctx, avatar, cover)
		return apierror.Internal("failed to secure password", err)
	}

	user := models.User{
		Username:   form.Username,
		Email:      form.Email,
		FullName:   form.FullName,
		Avatar:     avatar.URL,
		CoverImage: cover.URL,
		Password:   hash,
	}
	if err := h.Users.Create(ctx, &user); err != nil {
		h.Media.discard(ctx, avatar, cover)
		if errors.Is(err, repositories.ErrConflict) {
			return apierror.Conflict("user with email or username already exists").Wrap(err)
		}
		return apierror.Internal("something went wrong while registering the user", err)
	}

	logger.Info("user registered", "user_id", user.ID.Hex())
	respond.JSON(ctx, w, http.StatusCreated, user, "user registered successfully")
	return nil
}

type loginRequest struct {
	Username string `json:"username" validate:"required_without=Email"`
	Email    string `json:"email" validate:"required_without=Username"`
	Password string `json:"password" validate:"required"`
}

type sessionResponse struct {
	User models.User `json:"user"`
	models.SessionTokens
}

// Login handles POST /api/v1/users/login.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}

	login := req.Username
	if strings.TrimSpace(login) == "" {
		login = req.Email
	}
	user, err := h.Users.FindByLogin(ctx, login)
	if err != nil {
		return storeError(err, "user")
	}

	if err := auth.CheckPassword(user.Password, req.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return apierror.Auth("invalid user credentials")
		}
		return apierror.Internal("unable to verify credentials", err)
	}

	tokens, err := h.Sessions.Issue(ctx, identityOf(user))
	if err != nil {
		return apierror.Internal("failed to create session", err)
	}

	h.setSessionCookies(w, tokens)
	respond.JSON(ctx, w, http.StatusOK, sessionResponse{User: user, SessionTokens: tokens}, "user logged in successfully")
	return nil
}

// Logout handles POST /api/v1/users/logout.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	claims, ok := middleware.ClaimsFromContext(ctx)
	if !ok {
		return apierror.Auth("unauthorized request")
	}
	if err := h.Sessions.Revoke(ctx, claims); err != nil {
		return apierror.Internal("failed to end session", err)
	}

	h.clearSessionCookies(w)
	respond.JSON(ctx, w, http.StatusOK, struct{}{}, "user logged out")
	return nil
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh handles POST /api/v1/users/refresh-token. The refresh token is
// read from its cookie first and from the JSON body otherwise.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	token := ""
	if c, err := r.Cookie(refreshTokenCookie); err == nil {
		token = strings.TrimSpace(c.Value)
	}
	if token == "" && r.ContentLength != 0 {
		var req refreshRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return err
		}
		token = strings.TrimSpace(req.RefreshToken)
	}
	if token == "" {
		return apierror.Auth("unauthorized request")
	}

	tokens, err := h.Sessions.Refresh(ctx, token, h.loadIdentity)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrRefreshTokenExpired),
			errors.Is(err, auth.ErrRefreshTokenReused),
			errors.Is(err, auth.ErrSessionNotFound),
			errors.Is(err, auth.ErrInvalidToken),
			errors.Is(err, repositories.ErrNotFound):
			return apierror.Auth("invalid refresh token").Wrap(err)
		default:
			return apierror.Internal("unable to refresh session", err)
		}
	}

	h.setSessionCookies(w, tokens)
	respond.JSON(ctx, w, http.StatusOK, tokens, "access token refreshed")
	return nil
}

func (h AuthHandler) loadIdentity(ctx context.Context, userID string) (auth.Identity, error) {
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	user, err := h.Users.FindByID(ctx, id)
	if err != nil {
		return auth.Identity{}, err
	}
	return identityOf(user), nil
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"notblank,min=8"`
}

// ChangePassword handles POST /api/v1/users/change-password.
func (h AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	user, err := currentUser(r)
	if err != nil {
		return err
	}

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}

	if err := auth.CheckPassword(user.Password, req.OldPassword); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return apierror.Validation("invalid old password")
		}
		return apierror.Internal("unable to verify password", err)
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return apierror.Internal("failed to secure password", err)
	}
	if err := h.Users.SetPassword(ctx, user.ID, hash); err != nil {
		return storeError(err, "user")
	}

	respond.JSON(ctx, w, http.StatusOK, struct{}{}, "password changed successfully")
	return nil
}

func identityOf(user models.User) auth.Identity {
	return auth.Identity{
		UserID:   user.ID.Hex(),
		Username: user.Username,
		Email:    user.Email,
		FullName: user.FullName,
	}
}

func (h AuthHandler) cookie(name, value string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.Cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if h.Cookies.Secure {
		c.SameSite = http.SameSiteNoneMode
	}
	return c
}

func (h AuthHandler) setSessionCookies(w http.ResponseWriter, tokens models.SessionTokens) {
	http.SetCookie(w, h.cookie(middleware.AccessTokenCookie, tokens.AccessToken, tokens.AccessExpiresAt))
	http.SetCookie(w, h.cookie(refreshTokenCookie, tokens.RefreshToken, tokens.RefreshExpiresAt))
}

func (h AuthHandler) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{middleware.AccessTokenCookie, refreshTokenCookie} {
		c := h.cookie(name, "", time.Unix(0, 0))
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}
