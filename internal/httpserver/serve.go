package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/andrebq/secrets/internal/logutil"
)

type (
	Options struct {
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		IdleTimeout     time.Duration
		ShutdownTimeout time.Duration
		// Ready, when set, receives the bound address once the listener is open
		Ready func(addr net.Addr)
	}
)

func DefaultOptions() Options {
	return Options{
		ReadTimeout:     time.Minute,
		WriteTimeout:    time.Minute,
		IdleTimeout:     time.Minute * 5,
		ShutdownTimeout: time.Second * 30,
	}
}

// Serve blocks until ctx is cancelled or the listener fails. Cancelling ctx
// triggers a graceful shutdown and is not reported as an error.
func Serve(ctx context.Context, bind string, handler http.Handler, opts Options) error {
	log := logutil.GetOrDefault(ctx).With().Str("server.addr", bind).Logger()
	lst, err := net.Listen("tcp", bind)
	if err != nil {
		return err
	}
	server := http.Server{
		Handler:           handler,
		ReadTimeout:       opts.ReadTimeout,
		WriteTimeout:      opts.WriteTimeout,
		ReadHeaderTimeout: opts.ReadTimeout,
		IdleTimeout:       opts.IdleTimeout,
		BaseContext:       func(net.Listener) context.Context { return logutil.WithLogger(context.Background(), log) },
	}
	if opts.Ready != nil {
		opts.Ready(lst.Addr())
	}
	serveErr := make(chan error, 1)
	go func() {
		defer close(serveErr)
		log.Info().Stringer("listen", lst.Addr()).Msg("Starting HTTP server")
		err := server.Serve(lst)
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("Initiating shutdown process")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
	defer cancel()
	err = server.Shutdown(shutdownCtx)
	log.Info().Msg("Shutdown completed")
	<-serveErr
	return err
}
