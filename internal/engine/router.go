package engine

import "github.com/gofiber/fiber/v2"

// RegisterDynamicRoutes mounts the entity CRUD and introspection routes.
// The meta routes are registered first so ":entity" cannot shadow them.
func RegisterDynamicRoutes(app *fiber.App, h *Handler, authMW, adminMW fiber.Handler) {
	api := app.Group("/api", authMW)

	api.Post("/_meta/reload", adminMW, h.Reload)
	api.Get("/_meta/:entity/roles", adminMW, h.Roles)

	api.Get("/:entity", h.List)
	api.Get("/:entity/:id", h.GetByID)
	api.Post("/:entity", h.Create)
	api.Patch("/:entity/:id", h.Update)
	api.Delete("/:entity/:id", h.Delete)
}
