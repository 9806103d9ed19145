package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/exam-grader-api/internal/utils"
)

// Portal roles carried in the token's role claim. AuthRoleAny accepts every
// authenticated account.
const (
	AuthRoleAny     = "any"
	AuthRoleFaculty = "faculty"
	AuthRoleStudent = "student"
)

// AuthOptions configures WithAuth.
type AuthOptions struct {
	Role        string
	RequireUser bool
}

type guard struct {
	requireUser bool
	roles       map[string]struct{}
}

// RequireRole rejects requests whose role is not one of roles. It is meant to
// run after JWTProtected.
func RequireRole(roles ...string) fiber.Handler {
	g := newGuard(true, roles...)
	return func(c *fiber.Ctx) error {
		if ok, err := g.allow(c); !ok {
			return err
		}
		return c.Next()
	}
}

// WithAuth wraps a single handler with the same checks as RequireRole. A
// specific role implies RequireUser.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	role := normalizeRoleValue(opts.Role)
	var g guard
	if role == "" || role == AuthRoleAny {
		g = newGuard(opts.RequireUser)
	} else {
		g = newGuard(true, role)
	}

	return func(c *fiber.Ctx) error {
		if ok, err := g.allow(c); !ok {
			return err
		}
		return handler(c)
	}
}

func newGuard(requireUser bool, roles ...string) guard {
	g := guard{requireUser: requireUser}
	for _, role := range roles {
		if normalized := normalizeRoleValue(role); normalized != "" {
			if g.roles == nil {
				g.roles = make(map[string]struct{}, len(roles))
			}
			g.roles[normalized] = struct{}{}
		}
	}
	return g
}

// allow reports whether the request may proceed. On rejection the response
// is already written and err is the result of sending it.
func (g guard) allow(c *fiber.Ctx) (bool, error) {
	if g.requireUser && !hasUser(c) {
		return false, utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}
	if g.roles == nil {
		return true, nil
	}
	if _, ok := g.roles[normalizeRoleValue(c.Locals("user_role"))]; !ok {
		return false, utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	}
	return true, nil
}

func hasUser(c *fiber.Ctx) bool {
	switch id := c.Locals("user_id").(type) {
	case uint:
		return id != 0
	case nil:
		return false
	default:
		return true
	}
}

func normalizeRoleValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case fmt.Stringer:
		return strings.ToLower(strings.TrimSpace(v.String()))
	default:
		return strings.ToLower(strings.TrimSpace(fmt.Sprintf("%v", value)))
	}
}
