package daemon

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"warden/internal/logging"
)

func TestAPIServerServesUntilCancelled(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
	srv := newAPIServer("127.0.0.1:0", handler, logging.NewNop())
	require.NoError(t, srv.listen())
	require.NotEqual(t, "127.0.0.1:0", srv.addr())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.serve(ctx)
	}()

	resp, err := http.Get("http://" + srv.addr() + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, "ok", string(body))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("api server did not shut down")
	}
}

func TestAPIServerListenConflict(t *testing.T) {
	first := newAPIServer("127.0.0.1:0", http.NotFoundHandler(), nil)
	require.NoError(t, first.listen())
	t.Cleanup(func() { _ = first.listener.Close() })

	second := newAPIServer(first.addr(), http.NotFoundHandler(), nil)
	err := second.listen()
	require.Error(t, err)
	require.Contains(t, err.Error(), "api listen")
}

func TestAPIServerServeWithoutListen(t *testing.T) {
	srv := newAPIServer("", http.NotFoundHandler(), nil)
	require.Equal(t, "127.0.0.1:7488", srv.addr())
	require.Error(t, srv.serve(context.Background()))
}
