package authz

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/carebridge/carebridge/internal/platform/auth"
)

// Middleware resolves the authenticated caller into an Actor once per
// request and stores it on the request context. Token roles are replaced
// with the profile role so downstream role gates see the stored role, not
// whatever the identity provider minted. Callers without a profile row pass
// through unresolved; RequireActor fences the routes that need one, which
// leaves the profile provisioning route reachable.
func Middleware(src ActorSource) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			raw := auth.UserIDFromContext(ctx)
			if raw == "" {
				return next(c)
			}
			id, err := uuid.Parse(raw)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid subject")
			}

			actor, err := src.Resolve(ctx, id)
			if errors.Is(err, ErrNoProfile) {
				return next(c)
			}
			if err != nil {
				log.Error().Err(err).Str("user_id", raw).Msg("actor resolution failed")
				return echo.NewHTTPError(http.StatusInternalServerError, "failed to resolve caller")
			}

			ctx = WithActor(ctx, actor)
			ctx = auth.WithRoles(ctx, []string{actor.Role})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// RequireActor rejects callers whose identity has no provisioned profile.
func RequireActor() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if ActorFromContext(c.Request().Context()) == nil {
				return echo.NewHTTPError(http.StatusForbidden, ErrNoProfile.Error())
			}
			return next(c)
		}
	}
}
