package httpapi

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"go.uber.org/zap"

	"github.com/prdeepak/ms365-access/internal/logger"
)

// RequestIDHeader carries the per-request ID on responses.
const RequestIDHeader = fiber.HeaderXRequestID

// accessLogFormat is parsed back into fields by accessLog. The path is last
// so a "|" inside it survives. ${path} never includes the query string,
// where the OAuth callback carries code and state.
const accessLogFormat = "${respHeader:" + RequestIDHeader + "}|${method}|${status}|${latency}|${path}\n"

// requestLogger logs one line per request through the application logger.
func requestLogger() fiber.Handler {
	return fiberlogger.New(fiberlogger.Config{
		Format: accessLogFormat,
		Stream: accessLog{},
	})
}

// accessLog turns fiber's access log lines into structured entries.
type accessLog struct{}

func (accessLog) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\r\n")
	parts := strings.SplitN(line, "|", 5)
	if len(parts) != 5 {
		logger.L().Info("http request", zap.String("line", line))
		return len(p), nil
	}
	for i := range parts[:4] {
		parts[i] = strings.TrimSpace(parts[i])
	}

	fields := []zap.Field{
		zap.String("request_id", parts[0]),
		zap.String("method", parts[1]),
		zap.String("path", parts[4]),
	}
	if status, err := strconv.Atoi(parts[2]); err == nil {
		fields = append(fields, zap.Int("status", status))
	}
	if latency, err := time.ParseDuration(parts[3]); err == nil {
		fields = append(fields, zap.Duration("latency", latency))
	}
	logger.L().Info("http request", fields...)
	return len(p), nil
}

// trustedHosts rejects requests whose Host header is not in hosts.
// An empty list or "*" allows any host.
func trustedHosts(hosts []string) fiber.Handler {
	allowed := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "*" {
			return func(c fiber.Ctx) error { return c.Next() }
		}
		if h != "" {
			allowed[h] = struct{}{}
		}
	}
	if len(allowed) == 0 {
		return func(c fiber.Ctx) error { return c.Next() }
	}

	return func(c fiber.Ctx) error {
		if _, ok := allowed[hostOnly(c.Hostname())]; !ok {
			return sendError(c, fiber.StatusBadRequest, CodeInvalidRequest, "Invalid host header")
		}
		return c.Next()
	}
}

// hostOnly strips an optional port and lowercases the host.
func hostOnly(hostport string) string {
	hostport = strings.ToLower(strings.TrimSpace(hostport))
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return strings.Trim(h, "[]")
	}
	return strings.Trim(hostport, "[]")
}
