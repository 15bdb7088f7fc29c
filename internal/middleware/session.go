package middleware

import (
	"log"
	"strings"

	"etalase/internal/models"

	"github.com/gofiber/fiber/v2"
)

// SessionCookie is the cookie carrying the admin session token.
const SessionCookie = "etalase_session"

const sessionKey = "session"

// SessionChecker decodes a session token.
type SessionChecker interface {
	GetSession(token string) (*models.Session, error)
}

// PageSessionRequired guards HTML pages. Visitors without a valid session are
// sent to /login and nothing else is rendered.
func PageSessionRequired(auth SessionChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session, err := auth.GetSession(TokenFrom(c))
		if err != nil {
			return c.Redirect("/login", fiber.StatusSeeOther)
		}
		c.Locals(sessionKey, session)
		return c.Next()
	}
}

// APISessionRequired guards JSON endpoints and answers 401 without a valid session.
func APISessionRequired(auth SessionChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session, err := auth.GetSession(TokenFrom(c))
		if err != nil {
			log.Printf("Session check failed: %v", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid or expired session",
				"error":   err.Error(),
			})
		}
		c.Locals(sessionKey, session)
		return c.Next()
	}
}

// TokenFrom returns the session token from the "Authorization: Bearer" header,
// falling back to the session cookie.
func TokenFrom(c *fiber.Ctx) string {
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return c.Cookies(SessionCookie)
}

// SessionFrom returns the session stored by one of the guards, or nil.
func SessionFrom(c *fiber.Ctx) *models.Session {
	session, _ := c.Locals(sessionKey).(*models.Session)
	return session
}
