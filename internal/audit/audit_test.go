package audit

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// startTestNATS starts an embedded NATS server and returns its client URL.
func startTestNATS(t *testing.T) string {
	t.Helper()
	opts := &natsserver.Options{Host: "127.0.0.1", Port: -1}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

func TestEntryLines(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	for _, tc := range []struct {
		entry Entry
		want  string
	}{
		{UserRegistered("alice@example.com", "user"),
			"[2026-03-14 09:26:53] New user registered with email 'alice@example.com' with user privileges"},
		{UserLoggedIn("alice@example.com"),
			"[2026-03-14 09:26:53] User 'alice@example.com' logged in"},
		{UserLoggedOut("alice@example.com"),
			"[2026-03-14 09:26:53] User 'alice@example.com' logged out"},
		{ConfigUpdated("alice@example.com", "payments"),
			"[2026-03-14 09:26:53] User 'alice@example.com' updated config for service 'payments'"},
		{ConfigRetrieved("alice@example.com", "payments"),
			"[2026-03-14 09:26:53] User 'alice@example.com' retrieved config for service 'payments'"},
		{ConfigDeleted("alice@example.com", "payments"),
			"[2026-03-14 09:26:53] User 'alice@example.com' deleted config for service 'payments'"},
		{ConfigCompared("alice@example.com", "payments", 3, 5),
			"[2026-03-14 09:26:53] User 'alice@example.com' compared versions 3 and 5 for service 'payments'"},
		{ConfigRolledBack("alice@example.com", "payments", 3),
			"[2026-03-14 09:26:53] User 'alice@example.com' rolled back config for service 'payments' to version 3"},
	} {
		tc.entry.Time = ts
		if got := tc.entry.Line(); got != tc.want {
			t.Errorf("%s:\n got  %q\n want %q", tc.entry.Topic, got, tc.want)
		}
	}
}

func TestNoopPublisher(t *testing.T) {
	var _ Publisher = (*NoopPublisher)(nil)
	pub := &NoopPublisher{}
	if err := pub.Publish(context.Background(), TopicUserLoggedIn, UserLoggedIn("x")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestFileSinkAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audit.log")
	sink := NewFileSink(path)

	e1 := UserLoggedIn("alice@example.com")
	e1.Time = time.Now()
	e2 := ConfigDeleted("alice@example.com", "payments")
	e2.Time = time.Now()
	if err := sink.Write(e1); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := sink.Write(e2); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read trail: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), data)
	}
	if !strings.Contains(lines[0], "logged in") || !strings.Contains(lines[1], "deleted config") {
		t.Errorf("unexpected trail contents: %q", lines)
	}
}

func TestNATSPublisherPublish(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe(TopicConfigUpdated, ch)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	nc.Flush()

	entry := ConfigUpdated("alice@example.com", "payments")
	entry.Time = time.Now()
	if err := pub.Publish(context.Background(), entry.Topic, entry); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	pub.conn.Flush()

	select {
	case msg := <-ch:
		var got Entry
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.UserEmail != "alice@example.com" || got.Service != "payments" {
			t.Errorf("got entry %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestTrailFallsBackToSinkWhenPublishFails(t *testing.T) {
	url := startTestNATS(t)
	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	pub.Close() // all publishes now fail

	path := filepath.Join(t.TempDir(), "audit.log")
	trail := NewTrail(pub, NewFileSink(path), nil)

	trail.Record(context.Background(), UserLoggedIn("alice@example.com"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("trail file missing after fallback: %v", err)
	}
	if !strings.Contains(string(data), "logged in") {
		t.Errorf("trail = %q, want login line", data)
	}
}

func TestTrailWritesSinkDirectlyWithoutPublisher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	trail := NewTrail(nil, NewFileSink(path), nil)

	trail.Record(context.Background(), ConfigDeleted("alice@example.com", "payments"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read trail: %v", err)
	}
	if !strings.Contains(string(data), "deleted config for service 'payments'") {
		t.Errorf("trail = %q", data)
	}
}

func TestWriterPersistsPublishedEntries(t *testing.T) {
	url := startTestNATS(t)

	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	defer sub.Close()

	path := filepath.Join(t.TempDir(), "audit.log")
	writer := NewWriter(sub, NewFileSink(path), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- writer.Run(ctx) }()

	// Give the writer a moment to establish its subscription.
	time.Sleep(100 * time.Millisecond)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	entry := ConfigCompared("alice@example.com", "payments", 1, 2)
	entry.Time = time.Now()
	if err := pub.Publish(ctx, entry.Topic, entry); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	pub.conn.Flush()

	deadline := time.Now().Add(2 * time.Second)
	for {
		data, _ := os.ReadFile(path)
		if strings.Contains(string(data), "compared versions 1 and 2") {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("trail never received entry; contents: %q", data)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("writer did not stop on cancel")
	}
}
