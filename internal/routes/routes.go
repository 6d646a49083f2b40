package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Brownie44l1/leaf-api/internal/handlers"
	"github.com/Brownie44l1/leaf-api/internal/middleware"
)

func SetupRoutes(app *fiber.App, h *handlers.Handler, tokens middleware.TokenValidator) {
	app.Get("/health", h.Health)

	api := app.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", h.Register)
	authGroup.Post("/login", h.Login)

	api.Get("/diseases", h.ListDiseases)
	api.Get("/diseases/:slug", h.GetDisease)

	protected := middleware.Protected(tokens)
	api.Post("/predict", protected, h.Predict)
	api.Get("/history", protected, h.ListHistory)
	api.Get("/history/:id", protected, h.GetHistory)
	api.Delete("/history/:id", protected, h.DeleteHistory)
	api.Get("/dashboard", protected, h.Dashboard)
}
