package serverutils

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CodedError is implemented by domain errors that map to an HTTP response.
type CodedError interface {
	error
	Code() string
	HTTPStatus() int
}

// ErrorHandlerMiddleware turns errors returned by handlers into the standard
// error body.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		return WriteError(ctx, err)
	}
}

func WriteError(ctx *fiber.Ctx, err error) error {
	status, body := classify(err)
	return ctx.Status(status).JSON(ErrorResponse{Success: false, Error: body})
}

func classify(err error) (int, ErrorBody) {
	var validation *ValidationError
	if errors.As(err, &validation) {
		return validation.HTTPStatus(), ErrorBody{Code: validation.Code(), Message: validation.Error(), Fields: validation.Fields}
	}

	var coded CodedError
	if errors.As(err, &coded) {
		return coded.HTTPStatus(), ErrorBody{Code: coded.Code(), Message: coded.Error()}
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code, ErrorBody{Code: statusCode(fiberErr.Code), Message: fiberErr.Message}
	}

	return http.StatusInternalServerError, ErrorBody{
		Code:    statusCode(http.StatusInternalServerError),
		Message: "internal server error",
	}
}

// statusCode renders a status as an error code, e.g. 404 -> NOT_FOUND.
func statusCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "ERROR"
	}
	return strings.ToUpper(strings.ReplaceAll(text, " ", "_"))
}
