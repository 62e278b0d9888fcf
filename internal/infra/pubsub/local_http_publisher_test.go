package pubsub

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"archer/config"
	"archer/internal/domain/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
)

func TestLocalHTTPPublisher_PublishScoreEvent(t *testing.T) {
	var got PushMessage
	var requestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = r.Header.Get("X-Request-Id")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	publisher := NewLocalHTTPPublisher(srv.URL, slog.New(slog.DiscardHandler))
	event := &service.ScoreEventMessage{
		RequestID:   "req-1",
		AccountID:   "uid",
		Kind:        "promotion",
		Score:       300,
		CurrentRank: "Gold",
	}

	require.NoError(t, publisher.PublishScoreEvent(context.Background(), event))

	assert.Equal(t, "req-1", requestID)
	assert.Equal(t, "promotion", got.Message.Attributes["kind"])
	raw, err := base64.StdEncoding.DecodeString(got.Message.Data)
	require.NoError(t, err)
	var decoded service.ScoreEventMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, *event, decoded)
}

func TestLocalHTTPPublisher_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	publisher := NewLocalHTTPPublisher(srv.URL, slog.New(slog.DiscardHandler))

	err := publisher.PublishScoreEvent(context.Background(), &service.ScoreEventMessage{AccountID: "uid"})
	assert.ErrorContains(t, err, "503")
}

func TestNewEventPublisher_ProviderSelection(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	publisher, err := NewEventPublisher(PublisherParams{
		Lc:     fxtest.NewLifecycle(t),
		Config: &config.Config{},
		Logger: logger,
	})
	require.NoError(t, err)
	assert.IsType(t, &noopPublisher{}, publisher)

	_, err = NewEventPublisher(PublisherParams{
		Lc:     fxtest.NewLifecycle(t),
		Config: &config.Config{PubSub: &config.PubSubConfig{Provider: ProviderLocal}},
		Logger: logger,
	})
	assert.ErrorContains(t, err, "local endpoint")

	_, err = NewEventPublisher(PublisherParams{
		Lc:     fxtest.NewLifecycle(t),
		Config: &config.Config{PubSub: &config.PubSubConfig{Provider: "kafka"}},
		Logger: logger,
	})
	assert.ErrorContains(t, err, "unknown pubsub provider")
}
