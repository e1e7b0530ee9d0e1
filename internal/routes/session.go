package routes

import "github.com/gofiber/fiber/v2"

// sessionRoutes registers routes behind the session guard. The guard is
// attached per route rather than with Use so public routes sharing the
// /api/v1 prefix stay reachable regardless of registration order.
type sessionRoutes struct {
	r     fiber.Router
	guard []fiber.Handler
}

func newSessionRoutes(r fiber.Router, guard ...fiber.Handler) sessionRoutes {
	return sessionRoutes{r: r, guard: guard}
}

func (s sessionRoutes) chain(handlers []fiber.Handler) []fiber.Handler {
	out := make([]fiber.Handler, 0, len(s.guard)+len(handlers))
	out = append(out, s.guard...)
	return append(out, handlers...)
}

// Get registers a session-only GET route.
func (s sessionRoutes) Get(path string, handlers ...fiber.Handler) {
	s.r.Get(path, s.chain(handlers)...)
}

// Post registers a session-only POST route.
func (s sessionRoutes) Post(path string, handlers ...fiber.Handler) {
	s.r.Post(path, s.chain(handlers)...)
}
