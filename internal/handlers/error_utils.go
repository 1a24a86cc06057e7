package handlers

import (
	"errors"
	"fmt"
	"net/http"

	contextutils "englishapp/internal/utils"

	"github.com/gin-gonic/gin"
)

// StandardizeHTTPError answers with a structured error for a bare status code
func StandardizeHTTPError(c *gin.Context, statusCode int, message, details string) {
	code, severity := contextutils.CodeForStatus(statusCode)
	appErr := contextutils.NewAppError(code, severity, message, details)
	_ = c.Error(appErr)
	c.JSON(statusCode, appErr.ToJSON())
}

// StandardizeAppError sends a structured error response using AppError
func StandardizeAppError(c *gin.Context, err *contextutils.AppError) {
	_ = c.Error(err)
	c.JSON(err.Code.HTTPStatus(), err.ToJSON())
}

// HandleValidationError handles input validation errors consistently
func HandleValidationError(c *gin.Context, field string, value interface{}, reason string) {
	appErr := contextutils.NewAppError(
		contextutils.ErrorCodeInvalidInput,
		contextutils.SeverityWarn,
		fmt.Sprintf("Invalid %s", field),
		fmt.Sprintf("Value '%v' is invalid: %s", value, reason),
	)

	StandardizeAppError(c, appErr)
}

// HandleBindError answers a request whose body could not be bound or validated
func HandleBindError(c *gin.Context, err error) {
	StandardizeAppError(c, contextutils.NewAppErrorWithCause(
		contextutils.ErrorCodeInvalidInput,
		contextutils.SeverityWarn,
		"Invalid request body",
		err.Error(),
		err,
	))
}

// HandleAppError handles any error and sends the matching HTTP response
func HandleAppError(c *gin.Context, err error) {
	var appErr *contextutils.AppError
	if errors.As(err, &appErr) {
		StandardizeAppError(c, appErr)
		return
	}
	StandardizeHTTPError(c, http.StatusInternalServerError, "Internal server error", err.Error())
}
