package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/arbitraryexecution/forta-relay/pkg/models"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// SendSuccess writes data wrapped in the success envelope.
func SendSuccess(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(models.APIResponse{
		Status: statusSuccess,
		Data:   data,
	})
}

// SendErrorWithType writes an error envelope with the given classification.
func SendErrorWithType(c *fiber.Ctx, status int, message string, errType models.ErrorType) error {
	return c.Status(status).JSON(models.APIResponse{
		Status:    statusError,
		Message:   message,
		ErrorType: errType,
	})
}

// errorHandler renders errors that escape a handler, including fiber's own
// 404 and 405 errors, in the error envelope.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	errType := models.GeneralErrorType

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		if code == fiber.StatusNotFound {
			errType = models.NotFoundErrorType
		}
	}

	if code >= fiber.StatusInternalServerError {
		s.log.Error("unhandled request error", "path", c.Path(), "error", err)
	}
	return SendErrorWithType(c, code, err.Error(), errType)
}
