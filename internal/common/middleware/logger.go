package middleware

import (
	"io"
	"os"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

// ============================================================
// Logger Middleware
// ============================================================

const accessFormat = "[${time}] ${status} - ${latency} ${method} ${path} | ${bytesSent}B | Content-Type: ${reqHeader:Content-Type}\n"

// Logger пишет строку на каждый запрос в stdout.
func Logger() fiber.Handler {
	return accessLogger(os.Stdout)
}

// accessLogger пропускает потоки presence: SSE живёт до отключения вкладки,
// и строка с задержкой в часы ничего не говорит. Вход и выход из комнаты
// логирует сам hub ([PRESENCE]).
func accessLogger(out io.Writer) fiber.Handler {
	return logger.New(logger.Config{
		Next:       isPresenceStream,
		Format:     accessFormat,
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
		Stream:     out,
	})
}

func isPresenceStream(c fiber.Ctx) bool {
	return c.Method() == fiber.MethodGet && strings.HasSuffix(strings.TrimRight(c.Path(), "/"), "/presence")
}
