package transport

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
)

// ErrorHandler is the fiber error sink: it logs the failure with the request
// id and renders a uniform JSON error body. Handlers only return errors; the
// status code comes from the *fiber.Error they wrap sentinels into.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		reqID, _ := c.Locals(requestid.ConfigDefault.ContextKey).(string)

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", code),
			zap.Error(err),
		}
		if reqID != "" {
			fields = append(fields, zap.String("requestId", reqID))
		}

		if code >= fiber.StatusInternalServerError {
			logger.Error("request failed", fields...)
		} else {
			logger.Warn("request rejected", fields...)
		}

		body := fiber.Map{"error": err.Error()}
		if reqID != "" {
			body["request_id"] = reqID
		}
		return c.Status(code).JSON(body)
	}
}
