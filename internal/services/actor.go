package services

import (
	"fmt"
	"strings"

	"storefront/internal/apperrors"
	"storefront/internal/models"

	"github.com/go-playground/validator/v10"
)

// Actor is the identity claim attached to a request.
type Actor struct {
	UserID string
	Role   string
}

func (a Actor) IsAdmin() bool  { return a.Role == models.RoleAdmin }
func (a Actor) IsVendor() bool { return a.Role == models.RoleVendor }

// validationError turns validator output into an apperrors validation error.
func validationError(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperrors.Validation("%v", err)
	}
	msgs := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		msgs = append(msgs, fmt.Sprintf("field '%s' failed on the '%s' tag", e.Namespace(), e.Tag()))
	}
	return apperrors.Validation("%s", strings.Join(msgs, "; "))
}
