package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/MikeSquared-Agency/Tasklens/internal/hooks"
	"github.com/MikeSquared-Agency/Tasklens/internal/store"
)

// TaskHooks receives task lifecycle events. Satisfied by *hooks.Hooks.
type TaskHooks interface {
	TaskCreated(ctx context.Context, t store.Task)
	TaskUpdated(ctx context.Context, t store.Task)
	TaskDeleted(ctx context.Context, taskID string)
}

// Subscriber turns task events from the bus into index hooks.
type Subscriber struct {
	client *Client
	hooks  TaskHooks
	prefix string
	logger *slog.Logger
	subs   []*nats.Subscription
	ackMsg func(msg *nats.Msg) error
}

// NewSubscriber creates a task event subscriber.
func NewSubscriber(client *Client, h TaskHooks, prefix string, logger *slog.Logger) *Subscriber {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Subscriber{
		client: client,
		hooks:  h,
		prefix: prefix,
		logger: logger,
		ackMsg: func(msg *nats.Msg) error { return msg.Ack() },
	}
}

// Start subscribes to task created, updated and deleted subjects.
func (s *Subscriber) Start(ctx context.Context) error {
	subjects := map[string]func(msg *nats.Msg){
		s.prefix + ".task.*.created": s.handle(hooks.EventCreated),
		s.prefix + ".task.*.updated": s.handle(hooks.EventUpdated),
		s.prefix + ".task.*.deleted": s.handle(hooks.EventDeleted),
	}

	for subject, handler := range subjects {
		// Try JetStream durable consumer first, fall back to core NATS.
		// Messages are acked once dispatched; indexing runs in the background
		// and tasks it misses are picked up by the reconcile worker, not by
		// redelivery.
		sub, err := s.client.js.Subscribe(subject, handler,
			nats.Durable("tasklens-"+sanitizeSubject(subject)),
			nats.DeliverAll(),
			nats.AckExplicit(),
		)
		if err != nil {
			s.logger.Warn("JetStream subscribe failed, using core NATS", "subject", subject, "error", err)
			sub, err = s.client.conn.Subscribe(subject, handler)
			if err != nil {
				return fmt.Errorf("subscribing to %s: %w", subject, err)
			}
		}
		s.subs = append(s.subs, sub)
		s.logger.Info("subscribed to Hermes subject", "subject", subject)
	}
	return nil
}

// Stop unsubscribes from all subjects.
func (s *Subscriber) Stop() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	s.subs = nil
}

func (s *Subscriber) handle(event hooks.Event) func(msg *nats.Msg) {
	return func(msg *nats.Msg) {
		defer s.ack(msg)

		task, err := decodeTask(msg)
		if err != nil {
			s.logger.Error("failed to parse task event", "subject", msg.Subject, "error", err)
			return
		}

		ctx := context.Background()
		switch event {
		case hooks.EventCreated:
			s.hooks.TaskCreated(ctx, task)
		case hooks.EventUpdated:
			s.hooks.TaskUpdated(ctx, task)
		case hooks.EventDeleted:
			s.hooks.TaskDeleted(ctx, task.ID)
		}
		s.logger.Debug("task event dispatched", "event", string(event), "task_id", task.ID)
	}
}

// decodeTask reads the task from the envelope's data. The id falls back to
// the subject token (<prefix>.task.<id>.<event>) when the payload omits it.
func decodeTask(msg *nats.Msg) (store.Task, error) {
	var task store.Task
	var env Event
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		return task, fmt.Errorf("decoding envelope: %w", err)
	}
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &task); err != nil {
			return task, fmt.Errorf("decoding task: %w", err)
		}
	}
	if task.ID == "" {
		tokens := strings.Split(msg.Subject, ".")
		if len(tokens) >= 3 {
			task.ID = tokens[len(tokens)-2]
		}
	}
	if task.ID == "" || task.ID == "*" {
		return task, fmt.Errorf("event has no task id")
	}
	return task, nil
}

func (s *Subscriber) ack(msg *nats.Msg) {
	if msg.Reply == "" {
		return
	}
	if err := s.ackMsg(msg); err != nil {
		s.logger.Debug("ack failed", "subject", msg.Subject, "error", err)
	}
}

func sanitizeSubject(subject string) string {
	return strings.NewReplacer(".", "-", ">", "-", "*", "-").Replace(subject)
}
