package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	to      []string
	subject string
	body    string
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (s *recordingSender) Send(to []string, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMessage{to: to, subject: subject, body: body})
	return s.err
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type mapDirectory struct {
	emails map[int64]string
	names  map[int64]string
}

func (d mapDirectory) TenantEmail(id int64) (string, error) {
	e, ok := d.emails[id]
	if !ok {
		return "", errors.New("no such tenant")
	}
	return e, nil
}

func (d mapDirectory) PropertyName(id int64) (string, error) {
	return d.names[id], nil
}

var directory = mapDirectory{
	emails: map[int64]string{1: "sarah@example.test", 2: ""},
	names:  map[int64]string{10: "Modern Flat in Paddington"},
}

func TestHistoryBounded(t *testing.T) {
	h := NewHistory(3)
	for i := int64(1); i <= 5; i++ {
		h.Add(Event{ViewingID: i})
	}

	recent := h.Recent()
	require.Len(t, recent, 3)
	assert.Equal(t, int64(3), recent[0].ViewingID)
	assert.Equal(t, int64(5), recent[2].ViewingID)

	recent[0].ViewingID = 99
	assert.Equal(t, int64(3), h.Recent()[0].ViewingID, "Recent returns a copy")
}

func TestNewHistoryDefaultCapacity(t *testing.T) {
	assert.Equal(t, 100, NewHistory(0).capacity)
}

func TestFormatMessage(t *testing.T) {
	tests := []struct {
		event       Event
		wantSubject string
		wantBody    string
	}{
		{Event{Type: EventConfirmed, Time: "10:45"}, "Viewing confirmed", "confirmed for 10:45"},
		{Event{Type: EventSuggested, Time: "11:30"}, "New viewing time suggested", "suggests 11:30"},
		{Event{Type: EventSuggestionAccepted, Time: "11:30"}, "Viewing confirmed", "confirmed for 11:30"},
		{Event{Type: EventDeclined}, "Viewing declined", "declined"},
		{Event{Type: EventSuggestionDeclined}, "Viewing declined", "declined"},
		{Event{Type: EventNoAlternative, Time: "10:00"}, "No availability today", "after 10:00"},
		{Event{Type: EventRequested, Time: "10:00"}, "Viewing request received", "at 10:00"},
	}

	for _, tt := range tests {
		t.Run(string(tt.event.Type), func(t *testing.T) {
			subject, body := FormatMessage(tt.event, "Modern Flat in Paddington")
			assert.Equal(t, tt.wantSubject, subject)
			assert.Contains(t, body, tt.wantBody)
			assert.Contains(t, body, "Modern Flat in Paddington")
		})
	}
}

func TestFormatMessageReasonAndFallbackName(t *testing.T) {
	_, body := FormatMessage(Event{Type: EventDeclined, PropertyID: 7, Reason: "agent unavailable"}, "")
	assert.Contains(t, body, "property 7")
	assert.Contains(t, body, "Reason: agent unavailable")
}

func TestDispatcherHandle(t *testing.T) {
	sender := &recordingSender{}
	h := NewHistory(10)
	d := NewDispatcher(h, sender, directory)

	d.Handle(Event{Type: EventConfirmed, TenantID: 1, PropertyID: 10, Time: "10:45"})
	d.Handle(Event{Type: EventConfirmed, TenantID: 2, PropertyID: 10, Time: "11:45"})
	d.Handle(Event{Type: EventConfirmed, TenantID: 3, PropertyID: 10, Time: "12:45"})

	assert.Len(t, h.Recent(), 3, "every event is recorded")
	require.Equal(t, 1, sender.count(), "only tenants with an email are notified")
	assert.Equal(t, []string{"sarah@example.test"}, sender.sent[0].to)
	assert.Equal(t, "Viewing confirmed", sender.sent[0].subject)
}

func TestDispatcherSendFailureIsNotFatal(t *testing.T) {
	sender := &recordingSender{err: errors.New("smtp down")}
	h := NewHistory(10)
	d := NewDispatcher(h, sender, directory)

	d.Handle(Event{Type: EventDeclined, TenantID: 1, PropertyID: 10})
	assert.Len(t, h.Recent(), 1)
	assert.Equal(t, 1, sender.count())
}

func TestBusDeliversToDispatcher(t *testing.T) {
	bus := NewBus()
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	sender := &recordingSender{}
	h := NewHistory(10)
	done := make(chan struct{})
	go func() {
		NewDispatcher(h, sender, directory).Run(ctx, events)
		close(done)
	}()

	require.NoError(t, bus.Publish(Event{Type: EventRequested, ViewingID: 1, TenantID: 1, PropertyID: 10, Time: "10:00"}))
	require.NoError(t, bus.Publish(Event{Type: EventConfirmed, ViewingID: 1, TenantID: 1, PropertyID: 10, Time: "10:00"}))

	require.Eventually(t, func() bool { return len(h.Recent()) == 2 }, 2*time.Second, 10*time.Millisecond)

	for _, e := range h.Recent() {
		assert.NotEmpty(t, e.ID, "bus assigns an event ID")
		assert.False(t, e.OccurredAt.IsZero())
		assert.Equal(t, int64(1), e.ViewingID)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop after cancel")
	}
}

func TestBusPreservesPublishOrder(t *testing.T) {
	bus := NewBus()
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	const total = 200
	received := make(chan []int64, 1)
	go func() {
		var ids []int64
		for e := range events {
			ids = append(ids, e.ViewingID)
			if len(ids) == total {
				break
			}
		}
		received <- ids
	}()

	for i := 1; i <= total; i++ {
		require.NoError(t, bus.Publish(Event{Type: EventRequested, ViewingID: int64(i)}))
	}

	select {
	case ids := <-received:
		require.Len(t, ids, total)
		for i, id := range ids {
			require.Equal(t, int64(i+1), id, "event %d delivered out of order", i)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("events not delivered")
	}
}

func TestBusPublishWithoutSubscriber(t *testing.T) {
	bus := NewBus()
	t.Cleanup(func() { _ = bus.Close() })

	assert.NoError(t, bus.Publish(Event{Type: EventRequested}))
}

func TestMailerDevModeDoesNotSend(t *testing.T) {
	m := NewMailer(SMTPConfig{Host: "127.0.0.1", Port: "1", From: "agency@example.test"}, true)
	assert.NoError(t, m.Send([]string{"sarah@example.test"}, "subject", "body"))

	unconfigured := NewMailer(SMTPConfig{}, false)
	assert.NoError(t, unconfigured.Send([]string{"sarah@example.test"}, "subject", "body"))
}

func TestBuildEmail(t *testing.T) {
	msg := string(buildEmail("agency@example.test", []string{"a@example.test", "b@example.test"}, "Viewing confirmed", "See you at 10:45"))

	assert.True(t, strings.HasPrefix(msg, "From: agency@example.test\r\n"))
	assert.Contains(t, msg, "To: a@example.test, b@example.test\r\n")
	assert.Contains(t, msg, "Subject: Viewing confirmed\r\n")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\nSee you at 10:45"))
}

func TestSMTPConfigIsConfigured(t *testing.T) {
	assert.False(t, SMTPConfig{}.IsConfigured())
	assert.False(t, SMTPConfig{Host: "smtp.example.test"}.IsConfigured())
	assert.True(t, SMTPConfig{Host: "smtp.example.test", From: "a@example.test"}.IsConfigured())
}

func TestDiscard(t *testing.T) {
	var p Publisher = Discard{}
	assert.NoError(t, p.Publish(Event{}))
}
