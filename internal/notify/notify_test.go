package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSinkPostsEvent(t *testing.T) {
	var received Event
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := NewHTTPSink(server.URL)
	err := sink.Send(context.Background(), Event{
		Type:   EventLeadsFound,
		UserID: "user-1",
		Data:   map[string]any{"count": float64(5)},
	})
	require.NoError(t, err)
	assert.Equal(t, EventLeadsFound, received.Type)
	assert.Equal(t, "user-1", received.UserID)
	assert.Equal(t, float64(5), received.Data["count"])
}

func TestHTTPSinkRejectsNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	sink := NewHTTPSink(server.URL)
	err := sink.Send(context.Background(), Event{Type: EventLowCredits, UserID: "user-1"})
	assert.Error(t, err)
}

func TestKafkaSinkPublishesKeyedByUser(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndSucceed()

	sink := NewKafkaSink(producer, "notifications")
	err := sink.Send(context.Background(), Event{Type: EventLeadsFound, UserID: "user-1"})
	require.NoError(t, err)
	require.NoError(t, producer.Close())
}

func TestNotifierSwallowsSinkErrors(t *testing.T) {
	notifier := NewNotifier(&failingSink{})

	// Must not panic or propagate; notifications are best-effort.
	notifier.LeadsFound(context.Background(), "user-1", 3, "")
	notifier.LowCredits(context.Background(), "user-1", 2, 100)
}

func TestNotifierLeadsFoundOmitsEmptyCampaign(t *testing.T) {
	sink := &MockSink{}
	notifier := NewNotifier(sink)

	notifier.LeadsFound(context.Background(), "user-1", 3, "")
	notifier.LeadsFound(context.Background(), "user-1", 3, "c-123")

	require.Len(t, sink.Events, 2)
	assert.NotContains(t, sink.Events[0].Data, "campaign_id")
	assert.Equal(t, "c-123", sink.Events[1].Data["campaign_id"])
}

func TestNotifierWithoutSink(t *testing.T) {
	notifier := NewNotifier(nil)
	notifier.LeadsFound(context.Background(), "user-1", 1, "")
}

type failingSink struct{}

func (f *failingSink) Send(context.Context, Event) error {
	return errors.New("sink down")
}
