package hermes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/MikeSquared-Agency/Tasklens/internal/hooks"
	"github.com/MikeSquared-Agency/Tasklens/internal/search"
	"github.com/MikeSquared-Agency/Tasklens/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	msgs []published
	err  error
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, published{subject, data})
	return nil
}

type recordedHook struct {
	event hooks.Event
	task  store.Task
}

type fakeHooks struct {
	calls []recordedHook
}

func (f *fakeHooks) TaskCreated(_ context.Context, t store.Task) {
	f.calls = append(f.calls, recordedHook{hooks.EventCreated, t})
}

func (f *fakeHooks) TaskUpdated(_ context.Context, t store.Task) {
	f.calls = append(f.calls, recordedHook{hooks.EventUpdated, t})
}

func (f *fakeHooks) TaskDeleted(_ context.Context, id string) {
	f.calls = append(f.calls, recordedHook{hooks.EventDeleted, store.Task{ID: id}})
}

func TestPublisherSearchIndexed(t *testing.T) {
	c := &fakeConn{}
	p := &Publisher{conn: c, prefix: "swarm", logger: testLogger()}

	err := p.SearchIndexed(context.Background(), hooks.EventCreated, "t1",
		search.Result{Outcome: search.OutcomeFailed, Err: errors.New("provider down")})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(c.msgs) != 1 || c.msgs[0].subject != "swarm.search.indexed" {
		t.Fatalf("unexpected messages %+v", c.msgs)
	}

	var env Event
	if err := json.Unmarshal(c.msgs[0].data, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.ID == "" || env.Source != "tasklens" || env.Type != "search.indexed" {
		t.Errorf("unexpected envelope %+v", env)
	}
	var data map[string]string
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data["task_id"] != "t1" || data["outcome"] != "failed" || data["error"] != "provider down" || data["event"] != "created" {
		t.Errorf("unexpected data %v", data)
	}
}

func TestPublisherSearchPerformed(t *testing.T) {
	c := &fakeConn{}
	p := &Publisher{conn: c, prefix: "acme", logger: testLogger()}

	if err := p.SearchPerformed(context.Background(), 3, 10); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if c.msgs[0].subject != "acme.search.performed" {
		t.Errorf("unexpected subject %s", c.msgs[0].subject)
	}
}

func TestPublisherError(t *testing.T) {
	p := &Publisher{conn: &fakeConn{err: nats.ErrConnectionClosed}, prefix: "swarm", logger: testLogger()}
	err := p.SearchPerformed(context.Background(), 0, 10)
	if !errors.Is(err, nats.ErrConnectionClosed) {
		t.Errorf("expected wrapped connection error, got %v", err)
	}
}

func TestSubscriberDispatch(t *testing.T) {
	h := &fakeHooks{}
	s := NewSubscriber(nil, h, "", testLogger())

	created := `{"id":"evt-1","type":"task.created","source":"kanban","data":{"id":"t1","title":"Renew SSL certificates","notes":"before friday"}}`
	s.handle(hooks.EventCreated)(&nats.Msg{Subject: "swarm.task.t1.created", Data: []byte(created)})

	updated := `{"id":"evt-2","type":"task.updated","data":{"title":"Renew SSL certificates now"}}`
	s.handle(hooks.EventUpdated)(&nats.Msg{Subject: "swarm.task.t1.updated", Data: []byte(updated)})

	s.handle(hooks.EventDeleted)(&nats.Msg{Subject: "swarm.task.t9.deleted", Data: []byte(`{"id":"evt-3"}`)})

	if len(h.calls) != 3 {
		t.Fatalf("expected 3 hook calls, got %d", len(h.calls))
	}
	if h.calls[0].event != hooks.EventCreated || h.calls[0].task.Notes != "before friday" {
		t.Errorf("unexpected created call %+v", h.calls[0])
	}
	if h.calls[1].task.ID != "t1" {
		t.Errorf("expected id from subject, got %+v", h.calls[1])
	}
	if h.calls[2].event != hooks.EventDeleted || h.calls[2].task.ID != "t9" {
		t.Errorf("unexpected deleted call %+v", h.calls[2])
	}
}

func TestSubscriberBadPayload(t *testing.T) {
	h := &fakeHooks{}
	s := NewSubscriber(nil, h, "swarm", testLogger())

	s.handle(hooks.EventCreated)(&nats.Msg{Subject: "swarm.task.t1.created", Data: []byte("not json")})
	if len(h.calls) != 0 {
		t.Errorf("expected no dispatch for bad payload, got %+v", h.calls)
	}
}

func TestSubscriberAcksAfterDispatch(t *testing.T) {
	h := &fakeHooks{}
	s := NewSubscriber(nil, h, "swarm", testLogger())
	var acked []int
	s.ackMsg = func(*nats.Msg) error {
		acked = append(acked, len(h.calls))
		return nil
	}

	s.handle(hooks.EventUpdated)(&nats.Msg{Subject: "swarm.task.t1.updated", Reply: "ack.1", Data: []byte(`{"data":{"title":"x"}}`)})
	s.handle(hooks.EventCreated)(&nats.Msg{Subject: "swarm.task.t2.created", Reply: "ack.2", Data: []byte("not json")})
	s.handle(hooks.EventDeleted)(&nats.Msg{Subject: "swarm.task.t3.deleted", Data: []byte(`{}`)})

	// The undecodable message is acked too, so it is not redelivered.
	if len(acked) != 2 || acked[0] != 1 || acked[1] != 1 {
		t.Errorf("expected two acks after the first dispatch, got %v", acked)
	}
	if len(h.calls) != 2 {
		t.Errorf("expected 2 dispatches, got %d", len(h.calls))
	}
}

func TestSanitizeSubject(t *testing.T) {
	if got := sanitizeSubject("swarm.task.*.created"); got != "swarm-task---created" {
		t.Errorf("unexpected %q", got)
	}
}
