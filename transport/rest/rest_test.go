package rest_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waku-a2a/agent/transport"
	"github.com/waku-a2a/agent/transport/rest"
)

type fakeRelay struct {
	mu     sync.Mutex
	queues map[string][]string // topic -> base64 payloads
}

func newFakeRelay() *fakeRelay {
	return &fakeRelay{queues: make(map[string][]string)}
}

func (r *fakeRelay) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/relay/v1/auto/messages", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var body struct {
			ContentTopic string `json:"contentTopic"`
			Payload      string `json:"payload"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		r.mu.Lock()
		r.queues[body.ContentTopic] = append(r.queues[body.ContentTopic], body.Payload)
		r.mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("/relay/v1/auto/messages/", func(w http.ResponseWriter, req *http.Request) {
		topic := strings.TrimPrefix(req.URL.Path, "/relay/v1/auto/messages/")
		r.mu.Lock()
		pending := r.queues[topic]
		r.queues[topic] = nil
		r.mu.Unlock()

		messages := make([]map[string]any, 0, len(pending))
		for _, p := range pending {
			messages = append(messages, map[string]any{"contentTopic": topic, "payload": p, "timestamp": 0, "version": 0})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(messages)
	})
	return mux
}

func TestTransport_PublishAndPoll(t *testing.T) {
	relay := newFakeRelay()
	server := httptest.NewServer(relay.handler())
	defer server.Close()

	ctx := context.Background()
	tr := rest.New(server.URL)

	require.NoError(t, tr.Subscribe(ctx, "topic-a"))
	require.NoError(t, tr.Publish(ctx, "topic-a", []byte("hello")))

	got, err := tr.Poll(ctx, "topic-a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []byte("hello"), got[0])
}

func TestTransport_PollBeforeSubscribeIsEmpty(t *testing.T) {
	relay := newFakeRelay()
	server := httptest.NewServer(relay.handler())
	defer server.Close()

	ctx := context.Background()
	tr := rest.New(server.URL)

	got, err := tr.Poll(ctx, "topic-a")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTransport_PublishRejectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer server.Close()

	tr := rest.New(server.URL)
	err := tr.Publish(context.Background(), "topic-a", []byte("x"))
	assert.ErrorIs(t, err, transport.ErrRejected)
}

func TestTransport_PublishUnreachable(t *testing.T) {
	tr := rest.New("http://127.0.0.1:0")
	err := tr.Publish(context.Background(), "topic-a", []byte("x"))
	assert.ErrorIs(t, err, transport.ErrUnavailable)
}

func TestTransport_MalformedRelayEntryIsDropped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method == http.MethodPost {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]string{
			{"contentTopic": "topic-a", "payload": "not-base64!!!"},
			{"contentTopic": "topic-a", "payload": base64.StdEncoding.EncodeToString([]byte("good"))},
		})
	}))
	defer server.Close()

	ctx := context.Background()
	tr := rest.New(server.URL)
	require.NoError(t, tr.Subscribe(ctx, "topic-a"))

	got, err := tr.Poll(ctx, "topic-a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []byte("good"), got[0])
}
