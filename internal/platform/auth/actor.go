package auth

import "github.com/labstack/echo/v4"

// Actor is the caller of a mutating operation, passed explicitly into the
// service layer so role checks and audit attribution do not depend on
// ambient request state.
type Actor struct {
	UserID    string
	Roles     []string
	IP        string
	UserAgent string
}

// HasAnyRole reports whether the actor holds one of roles. Admin holds all.
func (a Actor) HasAnyRole(roles ...string) bool {
	return hasAnyRole(a.Roles, roles)
}

// ActorFromRequest builds the actor from the identity the auth middleware
// stored on the request.
func ActorFromRequest(c echo.Context) Actor {
	req := c.Request()
	ctx := req.Context()
	return Actor{
		UserID:    UserIDFromContext(ctx),
		Roles:     RolesFromContext(ctx),
		IP:        c.RealIP(),
		UserAgent: req.UserAgent(),
	}
}
