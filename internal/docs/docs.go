// Package docs serves the gateway's API documentation: an OpenAPI document
// and a small embedded explorer page. The explorer relies on inline script
// and style, so its responses override the gateway-wide strict CSP with the
// relaxed docs policy; the override is scoped to this subroute only.
package docs

import (
	_ "embed"

	"github.com/gofiber/fiber/v2"

	"fw-gateway/internal/middleware"
)

//go:embed index.html
var indexHTML []byte

//go:embed openapi.json
var openAPISpec []byte

// Register mounts the documentation routes
func Register(app *fiber.App) {
	app.Get("/docs", handleIndex)
	app.Get("/docs/openapi.json", handleSpec)
}

func handleIndex(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentSecurityPolicy, middleware.DocsCSP)
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(indexHTML)
}

func handleSpec(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentSecurityPolicy, middleware.DocsCSP)
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	return c.Send(openAPISpec)
}
