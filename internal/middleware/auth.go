package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vidtube/backend/internal/apierror"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/respond"
)

// AccessTokenCookie is the cookie that carries the access token.
const AccessTokenCookie = "accessToken"

// TokenParser validates access tokens.
type TokenParser interface {
	ParseAccess(ctx context.Context, token string) (*auth.AccessClaims, error)
}

// UserFinder loads the account behind a token.
type UserFinder interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (models.User, error)
}

type principalKey struct{}

type principal struct {
	user   models.User
	claims *auth.AccessClaims
}

// WithUser stores the acting user on the context.
func WithUser(ctx context.Context, user models.User, claims *auth.AccessClaims) context.Context {
	return context.WithValue(ctx, principalKey{}, principal{user: user, claims: claims})
}

// UserFromContext returns the acting user, if the request is authenticated.
func UserFromContext(ctx context.Context) (models.User, bool) {
	p, ok := ctx.Value(principalKey{}).(principal)
	return p.user, ok
}

// ViewerID is the acting user's id, or the zero id for anonymous requests.
func ViewerID(ctx context.Context) primitive.ObjectID {
	user, _ := UserFromContext(ctx)
	return user.ID
}

// ClaimsFromContext returns the claims of the token that authenticated the
// request.
func ClaimsFromContext(ctx context.Context) (*auth.AccessClaims, bool) {
	p, ok := ctx.Value(principalKey{}).(principal)
	if !ok || p.claims == nil {
		return nil, false
	}
	return p.claims, true
}

// Authenticator resolves the acting user from the access token.
type Authenticator struct {
	Tokens TokenParser
	Users  UserFinder
}

// Required rejects requests without a valid access token.
func (a Authenticator) Required(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := a.authenticate(r)
		if err != nil {
			respond.Error(r.Context(), w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Optional resolves the acting user when a token is present and lets
// anonymous requests through. A token that is present but invalid is still
// rejected.
func (a Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if accessToken(r) == "" {
			next.ServeHTTP(w, r)
			return
		}
		ctx, err := a.authenticate(r)
		if err != nil {
			respond.Error(r.Context(), w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a Authenticator) authenticate(r *http.Request) (context.Context, error) {
	ctx := r.Context()

	token := accessToken(r)
	if token == "" {
		return nil, apierror.Auth("unauthorized request")
	}

	claims, err := a.Tokens.ParseAccess(ctx, token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrTokenRevoked) {
			return nil, apierror.Auth("invalid access token").Wrap(err)
		}
		return nil, apierror.Internal("unable to verify access token", err)
	}

	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return nil, apierror.Auth("invalid access token").Wrap(err)
	}
	user, err := a.Users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apierror.Auth("invalid access token").Wrap(err)
		}
		return nil, apierror.Internal("unable to load user", err)
	}

	logger := logging.FromContext(ctx).With(slog.String("user_id", user.ID.Hex()))
	ctx = logging.WithLogger(ctx, logger)
	return WithUser(ctx, user, claims), nil
}

func accessToken(r *http.Request) string {
	if c, err := r.Cookie(AccessTokenCookie); err == nil && strings.TrimSpace(c.Value) != "" {
		return strings.TrimSpace(c.Value)
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
