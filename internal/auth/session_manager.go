package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/models"
)

var (
	// ErrSessionNotFound indicates the user has no active refresh token.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRefreshTokenExpired indicates the refresh token has expired and cannot be used.
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	// ErrRefreshTokenReused indicates a refresh token that was already rotated away.
	ErrRefreshTokenReused = errors.New("refresh token is expired or used")
	// ErrInvalidToken indicates a token that fails signature or claim validation.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenRevoked indicates an access token that was revoked by logout.
	ErrTokenRevoked = errors.New("token revoked")
)

// SessionStore persists the refresh token currently issued to each user.
// A user holds at most one session; saving replaces the previous one.
type SessionStore interface {
	Save(ctx context.Context, session Session) error
	Find(ctx context.Context, userID string) (Session, error)
	Delete(ctx context.Context, userID string) error
}

// Session represents a refresh token issued to a user.
type Session struct {
	UserID       string
	RefreshToken string
	ExpiresAt    time.Time
}

// Identity is the user data embedded in access tokens.
type Identity struct {
	UserID   string
	Username string
	Email    string
	FullName string
}

// AccessClaims are carried by access tokens.
type AccessClaims struct {
	UserID   string `json:"uid"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	jwt.RegisteredClaims
}

type refreshClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// Options configures token signing.
type Options struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// Manager issues, rotates and revokes JWT session pairs.
type Manager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string

	store     SessionStore
	blacklist Blacklist
	now       func() time.Time
}

// NewManager constructs a Manager. A nil blacklist disables access token
// revocation checks.
func NewManager(opts Options, store SessionStore, blacklist Blacklist) *Manager {
	if store == nil {
		panic("auth: session store must not be nil")
	}
	if blacklist == nil {
		blacklist = NewInMemoryBlacklist()
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 15 * time.Minute
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 7 * 24 * time.Hour
	}
	return &Manager{
		accessSecret:  []byte(opts.AccessSecret),
		refreshSecret: []byte(opts.RefreshSecret),
		accessTTL:     opts.AccessTTL,
		refreshTTL:    opts.RefreshTTL,
		issuer:        opts.Issuer,
		store:         store,
		blacklist:     blacklist,
		now:           time.Now,
	}
}

// Issue signs a new token pair for the user and records the refresh token,
// replacing any earlier one.
func (m *Manager) Issue(ctx context.Context, identity Identity) (models.SessionTokens, error) {
	if identity.UserID == "" {
		return models.SessionTokens{}, errors.New("user id must be provided")
	}

	now := m.now().UTC()
	accessExp := now.Add(m.accessTTL)
	refreshExp := now.Add(m.refreshTTL)

	access := AccessClaims{
		UserID:           identity.UserID,
		Username:         identity.Username,
		Email:            identity.Email,
		FullName:         identity.FullName,
		RegisteredClaims: m.registered(identity.UserID, now, accessExp),
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, access).SignedString(m.accessSecret)
	if err != nil {
		return models.SessionTokens{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh := refreshClaims{
		UserID:           identity.UserID,
		RegisteredClaims: m.registered(identity.UserID, now, refreshExp),
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refresh).SignedString(m.refreshSecret)
	if err != nil {
		return models.SessionTokens{}, fmt.Errorf("sign refresh token: %w", err)
	}

	if err := m.store.Save(ctx, Session{
		UserID:       identity.UserID,
		RefreshToken: refreshToken,
		ExpiresAt:    refreshExp,
	}); err != nil {
		return models.SessionTokens{}, err
	}

	return models.SessionTokens{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (m *Manager) registered(subject string, now, exp time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    m.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
}

// IdentityLoader resolves the current identity of a user during refresh.
type IdentityLoader func(ctx context.Context, userID string) (Identity, error)

// Refresh exchanges the user's current refresh token for a new pair. Only the
// most recently issued refresh token is accepted.
func (m *Manager) Refresh(ctx context.Context, refreshToken string, load IdentityLoader) (models.SessionTokens, error) {
	if refreshToken == "" {
		return models.SessionTokens{}, ErrSessionNotFound
	}

	var claims refreshClaims
	if err := m.parse(refreshToken, m.refreshSecret, &claims); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.SessionTokens{}, ErrRefreshTokenExpired
		}
		return models.SessionTokens{}, err
	}

	session, err := m.store.Find(ctx, claims.UserID)
	if err != nil {
		return models.SessionTokens{}, err
	}
	if subtle.ConstantTimeCompare([]byte(session.RefreshToken), []byte(refreshToken)) != 1 {
		return models.SessionTokens{}, ErrRefreshTokenReused
	}
	if m.now().UTC().After(session.ExpiresAt) {
		_ = m.store.Delete(ctx, claims.UserID)
		return models.SessionTokens{}, ErrRefreshTokenExpired
	}

	identity, err := load(ctx, claims.UserID)
	if err != nil {
		return models.SessionTokens{}, err
	}
	return m.Issue(ctx, identity)
}

// Revoke ends the user's session and blacklists the presented access token
// until it would have expired anyway.
func (m *Manager) Revoke(ctx context.Context, claims *AccessClaims) error {
	if claims == nil {
		return nil
	}
	if err := m.store.Delete(ctx, claims.UserID); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return err
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	return m.blacklist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

// ParseAccess validates an access token and returns its claims.
func (m *Manager) ParseAccess(ctx context.Context, token string) (*AccessClaims, error) {
	var claims AccessClaims
	if err := m.parse(token, m.accessSecret, &claims); err != nil {
		return nil, err
	}
	revoked, err := m.blacklist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return &claims, nil
}

func (m *Manager) parse(raw string, secret []byte, claims jwt.Claims) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	tkn, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !tkn.Valid {
		return ErrInvalidToken
	}
	return nil
}
