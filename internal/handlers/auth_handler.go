package handlers

import (
	"errors"
	"fmt"
	"log"

	"etalase/internal/middleware"
	"etalase/internal/models"
	"etalase/internal/services"
	"etalase/internal/views"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles sign in and sign out.
type AuthHandler struct {
	authService *services.AuthService
	validate    *validator.Validate
	layout      views.Layout
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService, layout views.Layout) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validate:    validator.New(),
		layout:      layout,
	}
}

// RegisterPageRoutes registers the browser login and logout routes.
func (h *AuthHandler) RegisterPageRoutes(router fiber.Router) {
	router.Get("/login", h.HandleLoginPage)
	router.Post("/login", h.HandleLoginForm)
	router.Post("/logout", h.HandleLogout)
}

// RegisterRoutes registers the JSON authentication routes.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/login", h.HandleLogin)
}

// LoginRequest represents the login credentials, as JSON or form fields.
type LoginRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
}

func (h *AuthHandler) validateLogin(req LoginRequest) map[string]string {
	if err := h.validate.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return map[string]string{"request": err.Error()}
		}
		errorMessages := make(map[string]string)
		for _, e := range validationErrors {
			errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
		}
		return errorMessages
	}
	return nil
}

// HandleLoginPage shows the credential form, or goes straight to the admin
// panel when a valid session already exists.
func (h *AuthHandler) HandleLoginPage(c *fiber.Ctx) error {
	if _, err := h.authService.GetSession(middleware.TokenFrom(c)); err == nil {
		return c.Redirect("/admin", fiber.StatusSeeOther)
	}
	return h.renderLogin(c, fiber.StatusOK, "", "")
}

// HandleLoginForm signs in from the HTML form and sets the session cookie.
func (h *AuthHandler) HandleLoginForm(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing login form: %v", err)
		return h.renderLogin(c, fiber.StatusBadRequest, "", "Invalid login request.")
	}
	if errs := h.validateLogin(req); errs != nil {
		return h.renderLogin(c, fiber.StatusBadRequest, req.Email, "Enter a valid email and password.")
	}

	token, session, err := h.authService.SignInWithPassword(c.UserContext(), req.Email, req.Password)
	if err != nil {
		log.Printf("Error during login for %s: %v", req.Email, err)
		if errors.Is(err, models.ErrAuthFailure) {
			return h.renderLogin(c, fiber.StatusUnauthorized, req.Email, "Invalid email or password.")
		}
		return h.renderLogin(c, fiber.StatusInternalServerError, req.Email, "Sign in failed. Please try again.")
	}

	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HTTPOnly: true,
		Secure:   c.Protocol() == "https",
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.Redirect("/admin", fiber.StatusSeeOther)
}

// HandleLogout clears the session cookie.
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	c.ClearCookie(middleware.SessionCookie)
	return c.Redirect("/login", fiber.StatusSeeOther)
}

// HandleLogin handles JSON login and issues a JWT token.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing login request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	if errs := h.validateLogin(req); errs != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  errs,
		})
	}

	token, session, err := h.authService.SignInWithPassword(c.UserContext(), req.Email, req.Password)
	if err != nil {
		log.Printf("Error during login for %s: %v", req.Email, err)
		return errorJSON(c, "Authentication failed", err)
	}

	return c.JSON(fiber.Map{
		"message":    "Login successful",
		"token":      token,
		"expires_at": session.ExpiresAt,
	})
}

func (h *AuthHandler) renderLogin(c *fiber.Ctx, status int, email, message string) error {
	layout := h.layout
	layout.Title = "Sign in"
	c.Status(status).Type("html")
	return views.Render(c, "login", views.LoginPage{Layout: layout, Email: email, Error: message})
}
