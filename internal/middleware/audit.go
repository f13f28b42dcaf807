package middleware

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
)

// AuditWriter defines how query audit records are persisted.
type AuditWriter interface {
	WriteQueryAudit(question, filters string, retrieved int, latencyMS int64, ip string) error
}

// queryBody mirrors the /query request payload for audit purposes.
type queryBody struct {
	Question  string `json:"question"`
	ChannelID string `json:"channel_id"`
	From      string `json:"from"`
	To        string `json:"to"`
}

// QueryAudit records every question asked, its filters and how it went, so
// retrieval quality can be reviewed against real usage.
func QueryAudit(writer AuditWriter) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		// Capture request data BEFORE handler execution (Fiber reuses
		// context objects).
		ip := c.IP()
		var body queryBody
		_ = json.Unmarshal(c.Body(), &body)

		err := c.Next()

		var resp struct {
			Citations []json.RawMessage `json:"citations"`
		}
		_ = json.Unmarshal(c.Response().Body(), &resp)

		filters, _ := json.Marshal(map[string]string{
			"channel_id": body.ChannelID,
			"from":       body.From,
			"to":         body.To,
		})
		latency := time.Since(start).Milliseconds()

		// Write asynchronously; all values are captured, safe to use in a
		// goroutine.
		go func() {
			if writeErr := writer.WriteQueryAudit(body.Question, string(filters), len(resp.Citations), latency, ip); writeErr != nil {
				slog.Error("failed to write query audit", "error", writeErr)
			}
		}()

		return err
	}
}
