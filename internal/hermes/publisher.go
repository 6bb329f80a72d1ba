package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Tasklens/internal/hooks"
	"github.com/MikeSquared-Agency/Tasklens/internal/search"
)

const eventSource = "tasklens"

type conn interface {
	Publish(subject string, data []byte) error
}

// Publisher publishes Tasklens events to Hermes.
type Publisher struct {
	conn   conn
	prefix string
	logger *slog.Logger
}

// NewPublisher creates a publisher on subjects under prefix.
func NewPublisher(client *Client, prefix string, logger *slog.Logger) *Publisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Publisher{conn: client.conn, prefix: prefix, logger: logger}
}

// Event is the standard envelope exchanged over Hermes.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

func (p *Publisher) publish(_ context.Context, suffix string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling event data: %w", err)
	}
	event := Event{
		ID:        uuid.NewString(),
		Type:      suffix,
		Source:    eventSource,
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	subject := p.prefix + "." + suffix
	if err := p.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}

	p.logger.Debug("published event", "subject", subject, "id", event.ID)
	return nil
}

// SearchIndexed publishes the outcome of a lifecycle hook.
func (p *Publisher) SearchIndexed(ctx context.Context, event hooks.Event, taskID string, res search.Result) error {
	data := map[string]any{
		"task_id": taskID,
		"event":   string(event),
		"outcome": string(res.Outcome),
	}
	if res.Reason != "" {
		data["reason"] = res.Reason
	}
	if res.Err != nil {
		data["error"] = res.Err.Error()
	}
	return p.publish(ctx, "search.indexed", data)
}

// SearchPerformed publishes a search event for analytics. The query text is
// not included.
func (p *Publisher) SearchPerformed(ctx context.Context, resultCount, limit int) error {
	return p.publish(ctx, "search.performed", map[string]any{
		"result_count": resultCount,
		"limit":        limit,
	})
}
