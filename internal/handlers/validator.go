package handlers

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"sitecraft/internal/common"
	"sitecraft/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// CustomValidator plugs validator/v10 into echo's Context.Validate.
type CustomValidator struct {
	validator *validator.Validate
}

func NewValidator() *CustomValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &CustomValidator{validator: v}
}

func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// bindAndValidate decodes the body into req and runs the struct tags.
// The returned error is already an HTTP response.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return common.SendValidationError(c, fe.Field(), validationMessage(fe))
		}
		return common.SendClientError(c, err.Error())
	}
	return nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "cannot exceed " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "fqdn":
		return "must be a valid domain name"
	case "uuid":
		return "must be a valid UUID"
	}
	return "is invalid"
}

// identity returns the authenticated user and tenant set by the JWT middleware.
func identity(c echo.Context) (uuid.UUID, uuid.UUID, error) {
	ctx := c.Request().Context()
	userID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return uuid.Nil, uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	tenantID, ok := common.GetTenantIDFromContext(ctx)
	if !ok {
		return uuid.Nil, uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "Tenant not found")
	}
	return userID, tenantID, nil
}

func callerRole(c echo.Context) models.Role {
	role, _ := common.GetRoleFromContext(c.Request().Context())
	return models.Role(role)
}

func pathID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := common.ValidateUUID(c.Param(name), name)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return id, nil
}
