package alert

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"auction_rebalancer/internal/core"
)

type mockAlertChannel struct {
	name string
	sent []AlertPayload
	mu   sync.Mutex
}

func (m *mockAlertChannel) Name() string {
	return m.name
}

func (m *mockAlertChannel) Send(ctx context.Context, alert AlertPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, alert)
	return nil
}

func (m *mockAlertChannel) getSent() []AlertPayload {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]AlertPayload, len(m.sent))
	copy(res, m.sent)
	return res
}

type mockLogger struct{}

func (m *mockLogger) Debug(msg string, f ...interface{})               {}
func (m *mockLogger) Info(msg string, f ...interface{})                {}
func (m *mockLogger) Warn(msg string, f ...interface{})                {}
func (m *mockLogger) Error(msg string, f ...interface{})               {}
func (m *mockLogger) Fatal(msg string, f ...interface{})               {}
func (m *mockLogger) WithField(k string, v interface{}) core.ILogger   { return m }
func (m *mockLogger) WithFields(f map[string]interface{}) core.ILogger { return m }

func waitForAlerts(t *testing.T, ch *mockAlertChannel, want int) []AlertPayload {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sent := ch.getSent(); len(sent) >= want {
			return sent
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d alerts, got %d", want, len(ch.getSent()))
	return nil
}

func TestAlertManager_Alert(t *testing.T) {
	am := NewAlertManager(&mockLogger{})

	ch1 := &mockAlertChannel{name: "mock1"}
	ch2 := &mockAlertChannel{name: "mock2"}

	am.AddChannel(ch1)
	am.AddChannel(ch2)

	am.Alert(context.Background(), "Test Alert", "This is a test", Info, map[string]string{"key": "value"})

	sent1 := waitForAlerts(t, ch1, 1)
	waitForAlerts(t, ch2, 1)

	payload := sent1[0]
	if payload.Title != "Test Alert" {
		t.Errorf("Expected title 'Test Alert', got '%s'", payload.Title)
	}
	if payload.Level != Info {
		t.Errorf("Expected level INFO, got %s", payload.Level)
	}
	if payload.Fields["key"] != "value" {
		t.Errorf("Expected field key=value, got %s", payload.Fields["key"])
	}
}

func TestNotifier_RebalanceStarted(t *testing.T) {
	am := NewAlertManager(&mockLogger{})
	ch := &mockAlertChannel{name: "mock"}
	am.AddChannel(ch)

	n := NewNotifier(am, decimal.Zero)
	n.Publish(context.Background(), core.RebalanceStartedEvent{
		Portfolio:         "index-1",
		QuoteAsset:        "WETH",
		RebalanceDuration: time.Hour,
	})

	sent := waitForAlerts(t, ch, 1)
	if sent[0].Title != "Rebalance started" {
		t.Errorf("unexpected title %q", sent[0].Title)
	}
	if sent[0].Fields["portfolio"] != "index-1" {
		t.Errorf("unexpected portfolio field %q", sent[0].Fields["portfolio"])
	}
}

func TestNotifier_LargeBidThreshold(t *testing.T) {
	am := NewAlertManager(&mockLogger{})
	ch := &mockAlertChannel{name: "mock"}
	am.AddChannel(ch)

	n := NewNotifier(am, decimal.RequireFromString("10"))

	// Below threshold: no alert.
	n.Publish(context.Background(), core.BidExecutedEvent{
		Portfolio:             "index-1",
		Bidder:                "bidder",
		IsSellAuction:         true,
		SentToken:             "DAI",
		QuantityReceivedBySet: decimal.RequireFromString("0.45"),
	})
	time.Sleep(50 * time.Millisecond)
	if len(ch.getSent()) != 0 {
		t.Fatalf("expected no alert below threshold, got %d", len(ch.getSent()))
	}

	// At threshold: alert fires.
	n.Publish(context.Background(), core.BidExecutedEvent{
		Portfolio:             "index-1",
		Bidder:                "bidder",
		IsSellAuction:         true,
		SentToken:             "DAI",
		QuantityReceivedBySet: decimal.RequireFromString("10"),
	})
	sent := waitForAlerts(t, ch, 1)
	if sent[0].Level != Warning {
		t.Errorf("expected WARNING, got %s", sent[0].Level)
	}
}

func TestNotifier_OpenBiddingWarning(t *testing.T) {
	am := NewAlertManager(&mockLogger{})
	ch := &mockAlertChannel{name: "mock"}
	am.AddChannel(ch)

	n := NewNotifier(am, decimal.Zero)

	// Disabling open bidding is routine; only enabling alerts.
	n.Publish(context.Background(), core.AnyoneBidUpdatedEvent{Portfolio: "index-1", Status: false})
	time.Sleep(50 * time.Millisecond)
	if len(ch.getSent()) != 0 {
		t.Fatalf("expected no alert for disable, got %d", len(ch.getSent()))
	}

	n.Publish(context.Background(), core.AnyoneBidUpdatedEvent{Portfolio: "index-1", Status: true})
	sent := waitForAlerts(t, ch, 1)
	if sent[0].Title != "Open bidding enabled" {
		t.Errorf("unexpected title %q", sent[0].Title)
	}
}
