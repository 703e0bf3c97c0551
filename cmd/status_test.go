package cmd

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worker-proxy-server/middleware"
	"worker-proxy-server/models"
)

func TestFetchQueueStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/queue", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"active":2,"max_concurrent":2,"queued":1,"max_queue":5}`))
	}))
	defer srv.Close()

	status, err := fetchQueueStatus(context.Background(), middleware.NewHTTPClient(time.Second, false), srv.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatus{Active: 2, MaxConcurrent: 2, Queued: 1, MaxQueue: 5}, status)
}

func TestFetchQueueStatusBadResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := fetchQueueStatus(context.Background(), http.DefaultClient, srv.URL)
	assert.ErrorContains(t, err, "502")
}

func TestStatusCommand(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"active":1,"max_concurrent":2,"queued":0,"max_queue":5}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"status", "--addr", srv.URL})
	require.NoError(t, root.Execute())
	assert.Equal(t, "active 1/2, queued 0/5\n", out.String())
}
