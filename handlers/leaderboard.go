// handlers/leaderboard.go
package handlers

import (
	"lawn-points-service/middleware"
	"lawn-points-service/services"

	"github.com/gofiber/fiber/v2"
)

func SetupLeaderboardRoutes(app *fiber.App, svc *services.LeaderboardService, refreshSecret string) {
	// 🔓 Public read routes
	app.Get("/api/leaderboard", svc.GetLeaderboard)
	app.Get("/api/casts", svc.GetCasts)
	app.Get("/api/users/:username/points", svc.GetUserPoints)

	// 🔐 Secured triggers — shared-secret bearer token, checked before anything runs
	secured := app.Group("/api", middleware.RefreshAuthMiddleware(refreshSecret))
	secured.Post("/refresh-leaderboard", svc.RefreshLeaderboard)
	secured.Post("/reset-leaderboard", svc.ResetLeaderboard)
}
