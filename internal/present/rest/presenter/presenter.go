package presenter

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/veratrail/veratrail"
	"github.com/veratrail/veratrail/internal/domain"
)

// OK wraps a successful response.
func OK(c echo.Context, payload any) error {
	return c.JSON(http.StatusOK, payload)
}

func Created(c echo.Context, payload any) error {
	return c.JSON(http.StatusCreated, payload)
}

func BadRequest(c echo.Context, err error) error {
	return c.JSON(http.StatusBadRequest, veratrail.APIError{
		Code:    veratrail.CodeBadRequest,
		Message: err.Error(),
	})
}

func BadRequestMessage(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, veratrail.APIError{
		Code:    veratrail.CodeBadRequest,
		Message: msg,
	})
}

// Unauthenticated is for missing or unresolvable credentials, distinct from
// an authenticated caller lacking rights.
func Unauthenticated(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, veratrail.APIError{
		Code:    veratrail.CodeUnauthorized,
		Message: msg,
	})
}

// Error maps a workflow error onto its HTTP status, preserving the stable
// code in the envelope. Anything outside the taxonomy is a 500 with the
// detail kept server-side.
func Error(c echo.Context, err error) error {
	var wf domain.WorkflowError
	if !errors.As(err, &wf) {
		slog.ErrorContext(
			c.Request().Context(), "unhandled error",
			slog.String("error", err.Error()),
			slog.String("module", "rest"),
		)
		return c.JSON(http.StatusInternalServerError, veratrail.APIError{
			Code:    veratrail.CodeInternal,
			Message: "internal error",
		})
	}

	return c.JSON(statusFor(wf.Code), veratrail.APIError{
		Code:    wf.Code,
		Message: wf.Error(),
	})
}

func statusFor(code veratrail.ErrorCode) int {
	switch code {
	case veratrail.CodeBadRequest:
		return http.StatusBadRequest
	case veratrail.CodeUnauthorized:
		return http.StatusForbidden
	case veratrail.CodeNotFound:
		return http.StatusNotFound
	case veratrail.CodeConflict, veratrail.CodeInvalidState,
		veratrail.CodeTerminalState, veratrail.CodeStageIncomplete,
		veratrail.CodeOutOfOrder:
		return http.StatusConflict
	case veratrail.CodeReasonTooShort, veratrail.CodeConfirmationRequired:
		return http.StatusUnprocessableEntity
	case veratrail.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
