package handlers

import (
	_ "embed"
	"fmt"

	"github.com/gofiber/fiber/v3"
)

// ============================================================
// API Docs
// ============================================================

//go:embed openapi.yaml
var openAPISpec []byte

const specURL = "/docs/openapi.yaml"

// SwaggerSpec отдаёт встроенное OpenAPI-описание.
func SwaggerSpec(c fiber.Ctx) error {
	c.Type("yaml")
	return c.Send(openAPISpec)
}

// SwaggerUI — страница Swagger UI поверх SwaggerSpec.
func SwaggerUI(c fiber.Ctx) error {
	c.Type("html")
	return c.SendString(fmt.Sprintf(swaggerPage, specURL))
}

const swaggerPage = `<!doctype html>
<html>
<head>
  <meta charset="utf-8">
  <title>Tabletop Map API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist/swagger-ui.css">
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist/swagger-ui-bundle.js"></script>
<script>
  window.onload = () => {
    window.ui = SwaggerUIBundle({
      url: '%s',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      tryItOutEnabled: true,
    });
  };
</script>
</body>
</html>`
