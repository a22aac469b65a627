package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists route patterns that bypass authentication. These are
// infrastructure endpoints (health checks, metrics) plus the public referral
// tracking endpoint, which patients use without an account.
var publicPaths = map[string]bool{
	"/health":                        true,
	"/health/db":                     true,
	"/metrics":                       true,
	"/public/referrals/:referral_id": true,
}

// AuthSkipper returns true for requests whose route should skip
// authentication. Pass this as the Skipper on JWTConfig or DevAuthMiddleware
// so the health-check, metrics, and public tracking endpoints stay reachable
// without a bearer token.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether the given route pattern bypasses auth.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
