package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const (
	gracefulEnvKey   = "SOCIALFEED_GRACEFUL"
	gracefulEnvValue = gracefulEnvKey + "=1"
	// fd of the inherited listener in a restarted child: stdin, stdout, stderr, listener
	gracefulListenerFD = 3
)

// ServerOptions tunes the HTTP server. Zero values fall back to defaults.
type ServerOptions struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

func (o ServerOptions) withDefaults() ServerOptions {
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 60 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = o.ReadTimeout
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = 30 * time.Second
	}
	return o
}

// Server wraps http.Server with graceful shutdown on SIGTERM/SIGINT or context
// cancellation, and zero-downtime restart on SIGUSR2.
type Server struct {
	*http.Server

	listener        net.Listener
	inherited       bool
	shutdownTimeout time.Duration
	signals         chan os.Signal
	done            chan struct{}
	once            sync.Once
}

// NewServer creates a Server for handler. It does not listen yet.
func NewServer(addr string, handler http.Handler, opts ServerOptions) *Server {
	opts = opts.withDefaults()
	return &Server{
		Server: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  opts.ReadTimeout,
			WriteTimeout: opts.WriteTimeout,
		},
		inherited:       os.Getenv(gracefulEnvKey) != "",
		shutdownTimeout: opts.ShutdownTimeout,
		signals:         make(chan os.Signal, 1),
		done:            make(chan struct{}),
	}
}

// Serve listens and serves until ctx is cancelled or a stop signal arrives,
// then waits for in-flight requests to drain.
func (srv *Server) Serve(ctx context.Context) error {
	ln, err := srv.listen()
	if err != nil {
		return err
	}
	srv.listener = ln

	signal.Notify(srv.signals, syscall.SIGTERM, syscall.SIGINT, syscall.SIGUSR2)
	defer signal.Stop(srv.signals)
	go srv.watch(ctx)

	Logger.Info("http server listening", zap.String("addr", ln.Addr().String()), zap.Bool("inherited", srv.inherited))
	err = srv.Server.Serve(ln)
	if !errors.Is(err, http.ErrServerClosed) {
		srv.shutdown()
		return err
	}
	<-srv.done
	return nil
}

func (srv *Server) listen() (net.Listener, error) {
	if srv.inherited {
		ln, err := net.FileListener(os.NewFile(gracefulListenerFD, "listener"))
		if err != nil {
			return nil, fmt.Errorf("inherit listener: %w", err)
		}
		return ln, nil
	}
	addr := srv.Addr
	if addr == "" {
		addr = ":http"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return ln, nil
}

func (srv *Server) watch(ctx context.Context) {
	for {
		select {
		case <-srv.done:
			return
		case <-ctx.Done():
			Logger.Info("context cancelled, shutting down http server")
			srv.shutdown()
			return
		case sig := <-srv.signals:
			switch sig {
			case syscall.SIGTERM, syscall.SIGINT:
				Logger.Info("shutting down http server", zap.String("signal", sig.String()))
				srv.shutdown()
				return
			case syscall.SIGUSR2:
				pid, err := srv.fork()
				if err != nil {
					Logger.Error("restart failed, still serving", zap.Error(err))
					continue
				}
				Logger.Info("restarted, draining old process", zap.Int("child_pid", pid))
				srv.shutdown()
				return
			}
		}
	}
}

func (srv *Server) shutdown() {
	srv.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), srv.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			Logger.Error("http server shutdown", zap.Error(err))
		}
		close(srv.done)
	})
}

// fork starts a copy of the current binary that inherits the listening socket.
func (srv *Server) fork() (int, error) {
	tcpLn, ok := srv.listener.(*net.TCPListener)
	if !ok {
		return 0, errors.New("listener is not a TCP listener")
	}
	file, err := tcpLn.File()
	if err != nil {
		return 0, fmt.Errorf("listener file: %w", err)
	}
	defer file.Close()

	env := make([]string, 0, len(os.Environ())+1)
	for _, e := range os.Environ() {
		if e != gracefulEnvValue {
			env = append(env, e)
		}
	}
	env = append(env, gracefulEnvValue)

	pid, err := syscall.ForkExec(os.Args[0], os.Args, &syscall.ProcAttr{
		Env:   env,
		Files: []uintptr{os.Stdin.Fd(), os.Stdout.Fd(), os.Stderr.Fd(), file.Fd()},
	})
	if err != nil {
		return 0, fmt.Errorf("forkexec: %w", err)
	}
	return pid, nil
}

// GraceServer serves handler on addr until ctx ends or the process is signalled.
func GraceServer(ctx context.Context, addr string, handler http.Handler, opts ServerOptions) error {
	return NewServer(addr, handler, opts).Serve(ctx)
}
