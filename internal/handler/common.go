// Package handler exposes the HTTP handlers of the gym API.  Handlers
// bind and validate input, resolve the caller from the JWT middleware
// and delegate to the repositories or the booking engine.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-backend/internal/booking"
	"github.com/iliyamo/gym-backend/internal/middleware"
	"github.com/iliyamo/gym-backend/internal/model"
	"github.com/iliyamo/gym-backend/internal/repository"
)

// defaultTimeout bounds storage calls when no timeout is configured.
const defaultTimeout = 5 * time.Second

// UserStore is the user persistence used by the auth and class handlers.
// It is satisfied by *repository.UserRepo and *memory.Users.
type UserStore interface {
	Create(ctx context.Context, email, password, fullName string, role model.Role, cost int) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	IsTrainer(ctx context.Context, id uint64) (bool, error)
}

// ClassStore is the class schedule persistence.  It is satisfied by
// *repository.ClassRepo and *memory.Classes.
type ClassStore interface {
	List(ctx context.Context, f repository.ClassFilter) ([]model.ClassWithCount, error)
	GetByID(ctx context.Context, id uint64) (model.ClassWithCount, error)
	Create(ctx context.Context, c *model.ClassSchedule) error
	Update(ctx context.Context, c *model.ClassSchedule) error
	Delete(ctx context.Context, id uint64) error
}

// Validator adapts go-playground/validator to echo.Validator.  Failures
// wrap booking.ErrInvalidInput so they map to 400.
type Validator struct {
	v *validator.Validate
}

// NewValidator returns a Validator that reports json field names.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

func (cv *Validator) Validate(i interface{}) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", booking.ErrInvalidInput, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "email":
			msgs = append(msgs, fe.Field()+" must be a valid email")
		case "min", "gt", "gte":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", fe.Field(), minBound(fe)))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fe.Field()+" is invalid")
		}
	}
	return fmt.Errorf("%w: %s", booking.ErrInvalidInput, strings.Join(msgs, "; "))
}

func minBound(fe validator.FieldError) string {
	if fe.Tag() == "gt" {
		n, err := strconv.Atoi(fe.Param())
		if err == nil {
			return strconv.Itoa(n + 1)
		}
	}
	return fe.Param()
}

// bindValid binds the request body into dst and validates it.
func bindValid(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return fmt.Errorf("%w: invalid body", booking.ErrInvalidInput)
	}
	return c.Validate(dst)
}

// writeError maps an error kind onto its HTTP status.  Unclassified
// errors are logged and answered with a generic 500.
func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, echo.ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	case booking.IsInvalidInput(err):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": message(err, booking.ErrInvalidInput)})
	case booking.IsForbidden(err), errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": message(err, booking.ErrForbidden)})
	case booking.IsNotFound(err), errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": message(err, booking.ErrNotFound)})
	case booking.IsConflict(err), errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": message(err, booking.ErrConflict)})
	case errors.Is(err, context.DeadlineExceeded):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "request timed out"})
	}
	req := c.Request()
	c.Logger().Errorf("%s %s: %v", req.Method, req.URL.Path, err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// message strips the sentinel prefix added by fmt.Errorf("%w: ...").
func message(err, kind error) string {
	msg := err.Error()
	if rest := strings.TrimPrefix(msg, kind.Error()+": "); rest != msg && rest != "" {
		return rest
	}
	return msg
}

// principal returns the caller stored by JWTAuth.
func principal(c echo.Context) (model.Principal, error) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return model.Principal{}, echo.ErrUnauthorized
	}
	return p, nil
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid %s", booking.ErrInvalidInput, name)
	}
	return id, nil
}

// withTimeout derives the storage context for a request.
func withTimeout(c echo.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = defaultTimeout
	}
	return context.WithTimeout(c.Request().Context(), d)
}
