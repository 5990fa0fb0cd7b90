package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vidtube/backend/internal/apierror"
	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/pipeline"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/respond"
)

const maxJSONBody = 1 << 20

// apiFunc is an HTTP handler that reports failure by returning it.
type apiFunc func(w http.ResponseWriter, r *http.Request) error

// handle adapts fn, writing any returned error as a failure envelope.
func handle(fn apiFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			respond.Error(r.Context(), w, err)
		}
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// check validates v, turning field failures into a 400 with one detail per
// field.
func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apierror.Internal("validate request", err)
	}

	details := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, describeField(fe))
	}
	return apierror.Validation(details[0], details...)
}

func describeField(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return fe.Field() + " is required"
	case "required_without":
		return fmt.Sprintf("%s or %s is required", fe.Field(), strings.ToLower(fe.Param()))
	case "email":
		return fe.Field() + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fe.Field() + " is invalid"
	}
}

// decodeJSON reads a JSON body into dst and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		return apierror.Validation("invalid request body").Wrap(err)
	}
	return check(dst)
}

// objectIDParam parses the named path parameter as an ObjectID.
func objectIDParam(r *http.Request, name string) (primitive.ObjectID, error) {
	raw := chi.URLParam(r, name)
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, apierror.Validation(fmt.Sprintf("invalid %s", name)).Wrap(err)
	}
	return id, nil
}

// currentUser returns the authenticated caller.
func currentUser(r *http.Request) (models.User, error) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		return models.User{}, apierror.Auth("unauthorized request")
	}
	return user, nil
}

// storeError classifies a repository or query failure about entity.
func storeError(err error, entity string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrNotFound):
		return apierror.NotFound(entity + " not found").Wrap(err)
	case errors.Is(err, repositories.ErrForbidden):
		return apierror.Forbidden("you are not the owner of this " + entity).Wrap(err)
	case errors.Is(err, repositories.ErrDuplicate):
		return apierror.Validation(entity + " already exists").Wrap(err)
	case errors.Is(err, repositories.ErrConflict):
		return apierror.Conflict(entity + " already exists").Wrap(err)
	case errors.Is(err, pipeline.ErrInvalidSort):
		return apierror.Validation("invalid sort parameters").Wrap(err)
	default:
		return apierror.Internal("unable to process "+entity, err)
	}
}
