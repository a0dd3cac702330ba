package synthesizer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/bpforge/internal/infrastructure/tracing"
)

func server(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPSynthesize(t *testing.T) {
	var got Request
	srv := server(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/synthesize", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.NotEmpty(t, r.Header.Get(tracing.HeaderTraceID))
		assert.NoError(t, sonic.ConfigDefault.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"source": "class TodoStore extends Sink {}", "model": "test"}`))
	})

	client := NewHTTP(HTTPConfig{Endpoint: srv.URL, Token: "secret", Timeout: time.Second}, nil)
	req := request()
	tracer := tracing.New("test", nil)
	defer tracer.Close()
	_, ctx := tracer.StartSpan(context.Background(), "synthesize")
	source, err := client.Synthesize(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "class TodoStore extends Sink {}", source)
	assert.Equal(t, req.ID, got.ID)
	assert.Equal(t, "todo_store", got.Contract.Component)
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   error
	}{
		{http.StatusBadRequest, `{"error": "bad contract"}`, ErrRejected},
		{http.StatusServiceUnavailable, ``, ErrUnavailable},
		{http.StatusTooManyRequests, ``, ErrUnavailable},
		{http.StatusGatewayTimeout, ``, ErrTimeout},
		{http.StatusOK, `{"source": ""}`, ErrEmptyArtifact},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := server(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := NewHTTP(HTTPConfig{Endpoint: srv.URL}, nil).Synthesize(context.Background(), request())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestHTTPTimeout(t *testing.T) {
	srv := server(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewHTTP(HTTPConfig{Endpoint: srv.URL}, nil).Synthesize(ctx, request())
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestHTTPBreakerOpens(t *testing.T) {
	var hits atomic.Int32
	srv := server(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	client := NewHTTP(HTTPConfig{Endpoint: srv.URL, FailureThreshold: 2, OpenTimeout: time.Hour}, nil)
	for i := 0; i < 4; i++ {
		_, err := client.Synthesize(context.Background(), request())
		assert.ErrorIs(t, err, ErrUnavailable)
	}
	assert.Equal(t, int32(2), hits.Load())
}
