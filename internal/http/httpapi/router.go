package httpapi

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"solaudit/internal/http/handlers"
	"solaudit/internal/middleware"
)

type Options struct {
	CORSAllowedOrigins []string
	RateLimitPerMin    int
	// TrustedProxies may set X-Forwarded-For for rate limiting.
	TrustedProxies []*net.IPNet
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.Recoverer,
		middleware.Logger(*app.Logger),
		middleware.CORS(opts.CORSAllowedOrigins),
	)

	r.Get("/health", app.Health)
	r.Method(http.MethodGet, "/metrics", app.Metrics())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute, opts.TrustedProxies))
		r.Post("/", app.RPC)
	})

	return r
}
