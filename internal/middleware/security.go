package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// StrictCSP locks everything down. The gateway serves JSON only, so no
// source needs to be allowed.
const StrictCSP = "default-src 'none'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'"

// DocsCSP relaxes the policy for the embedded API explorer under /docs,
// which needs inline scripts and styles. Handlers on that subroute override
// the strict default with this value.
const DocsCSP = "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:"

// Security returns a middleware that attaches hardening headers to every
// response. HSTS is emitted only in production: advertising it from a
// plain-HTTP local instance would pin browsers to an endpoint that does not
// exist. X-XSS-Protection is intentionally never set; the legacy filter it
// controls is itself a known attack vector in some browsers.
// Cross-Origin-Embedder-Policy is likewise left unset for compatibility.
func Security(production bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Content-Security-Policy", StrictCSP)
		if production {
			c.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
		}
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-DNS-Prefetch-Control", "off")
		c.Set("X-Download-Options", "noopen")
		c.Set("X-Permitted-Cross-Domain-Policies", "none")
		c.Set("Referrer-Policy", "no-referrer")
		c.Set("Cross-Origin-Opener-Policy", "same-origin")
		c.Set("Cross-Origin-Resource-Policy", "same-origin")
		c.Set(fiber.HeaderCacheControl, "no-store, no-cache, must-revalidate")
		c.Set("Permissions-Policy",
			"accelerometer=(), camera=(), geolocation=(), gyroscope=(), magnetometer=(), microphone=(), payment=(), usb=()")

		return c.Next()
	}
}
