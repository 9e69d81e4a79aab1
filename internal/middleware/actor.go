package middleware

import (
	"strings"

	"github.com/wb-go/wbf/ginext"
)

const (
	ActorCookie = "mmq-user"
	ActorHeader = "X-User-ID"

	actorKey = "actor"
)

// ActorMiddleware resolves the calling actor from the session cookie, falling
// back to the X-User-ID header. It never rejects a request; handlers decide
// what an anonymous caller may do.
func ActorMiddleware() func(*ginext.Context) {
	return func(c *ginext.Context) {
		actor, err := c.Cookie(ActorCookie)
		if err != nil || strings.TrimSpace(actor) == "" {
			actor = c.GetHeader(ActorHeader)
		}

		c.Set(actorKey, strings.TrimSpace(actor))
		c.Next()
	}
}

// Actor returns the actor resolved for the request, or "" when anonymous.
func Actor(c *ginext.Context) string {
	return c.GetString(actorKey)
}
