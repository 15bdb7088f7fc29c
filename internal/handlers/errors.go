package handlers

import (
	"errors"

	"etalase/internal/models"

	"github.com/gofiber/fiber/v2"
)

// statusFor maps a domain error onto an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrNotConfirmed):
		return fiber.StatusBadRequest
	case errors.Is(err, models.ErrAuthFailure), errors.Is(err, models.ErrSessionAbsent):
		return fiber.StatusUnauthorized
	case errors.Is(err, models.ErrProductNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, models.ErrEmailTaken):
		return fiber.StatusConflict
	case errors.Is(err, models.ErrUploadFailure):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// userMessage is the text shown to a person for err.
func userMessage(err error) string {
	switch {
	case errors.Is(err, models.ErrNotConfirmed):
		return "Deletion was not confirmed."
	case errors.Is(err, models.ErrValidation):
		return "Please fix the highlighted fields."
	case errors.Is(err, models.ErrProductNotFound):
		return "Product not found."
	case errors.Is(err, models.ErrUploadFailure):
		return "Image upload failed. Please try again."
	case errors.Is(err, models.ErrFetchFailure):
		return "Could not load products. Please try again."
	default:
		return "Could not save the product. Please try again."
	}
}

// fieldErrors returns the per-field messages carried by a validation error.
func fieldErrors(err error) map[string]string {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return verr.Fields
	}
	return nil
}

// errorJSON writes the {message, error[, errors]} body used by every JSON endpoint.
func errorJSON(c *fiber.Ctx, message string, err error) error {
	body := fiber.Map{
		"message": message,
		"error":   err.Error(),
	}
	if fields := fieldErrors(err); fields != nil {
		body["errors"] = fields
	}
	return c.Status(statusFor(err)).JSON(body)
}
