package publish

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasmetrics/spectator-go/internal/spectatorconfig"
)

func TestPublishSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "inst-1", r.Header.Get("X-Spectator-Instance-Id"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(&spectatorconfig.Config{URI: srv.URL}, "inst-1")
	_, err := c.Publish(context.Background(), []byte(`{}`))
	require.NoError(t, err)
}

func TestPublishRetriesOn503ThenSucceeds(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(&spectatorconfig.Config{URI: srv.URL}, "inst-1")
	_, err := c.Publish(context.Background(), []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestPublish4xxIsNotRetried(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(&spectatorconfig.Config{URI: srv.URL}, "inst-1")
	_, err := c.Publish(context.Background(), []byte(`{}`))
	require.Error(t, err)
	assert.Equal(t, int32(1), attempts.Load())
}

// TestPublish400CarriesValidationBody covers the §6 "HTTP 400 with this
// body, all measurements are considered invalid" contract: the client
// must surface the status code and response body, not just an opaque
// error string, so a caller can tell a whole-batch validation rejection
// apart from a dead server.
func TestPublish400CarriesValidationBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"type":"error","errorCount":5,"message":["bad tag"]}`))
	}))
	defer srv.Close()

	c := NewClient(&spectatorconfig.Config{URI: srv.URL}, "inst-1")
	_, err := c.Publish(context.Background(), []byte(`{}`))
	require.Error(t, err)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
	assert.Contains(t, string(httpErr.Body), "errorCount")
}

func TestPublishRoundRobinsAcrossServers(t *testing.T) {
	var hitsA, hitsB atomic.Int32
	srvA := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hitsA.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srvA.Close()
	srvB := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hitsB.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srvB.Close()

	c := NewClient(&spectatorconfig.Config{URI: srvA.URL + "," + srvB.URL}, "inst-1")
	for i := 0; i < 4; i++ {
		_, err := c.Publish(context.Background(), []byte(`{}`))
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), hitsA.Load())
	assert.Equal(t, int32(2), hitsB.Load())
}

func TestFetchSubscriptionsNoConfigURIFails(t *testing.T) {
	c := NewClient(&spectatorconfig.Config{}, "inst-1")
	_, err := c.FetchSubscriptions(context.Background())
	assert.Error(t, err)
}
