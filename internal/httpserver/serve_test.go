package httpserver

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestServeUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	addr := make(chan net.Addr, 1)
	opts := DefaultOptions()
	opts.ShutdownTimeout = time.Second
	opts.Ready = func(a net.Addr) { addr <- a }

	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, "127.0.0.1:0", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "ok")
		}), opts)
	}()

	var bound net.Addr
	select {
	case bound = <-addr:
	case err := <-done:
		t.Fatal(err)
	}
	res, err := http.Get("http://" + bound.String() + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(res.Body)
	res.Body.Close()
	require.Equal(t, "ok", string(body))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServeBindFailure(t *testing.T) {
	lst, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lst.Close()
	err = Serve(context.Background(), lst.Addr().String(), http.NotFoundHandler(), DefaultOptions())
	require.Error(t, err)
}
