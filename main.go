package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/stevemurr/reactive-docstore/config"
	"github.com/stevemurr/reactive-docstore/handler"
	"github.com/stevemurr/reactive-docstore/logging"
	"github.com/stevemurr/reactive-docstore/store"
)

const Version = "0.1.0"

const usage = `Reactive document store.

Settings come from the config file, then HOST, PORT, STORE_BACKEND,
ALLOWED_ORIGINS, LOG_LEVEL and STORE_LATENCY, then the flags below.

Usage:
    docstore serve [--config=<path>] [--host=<host>] [--port=<port>]
        [--backend=<backend>] [--log-level=<level>]
    docstore config [--config=<path>]
    docstore -h | --help
    docstore --version

Options:
    -h --help              Show this screen.
    --version              Show version.
    --config=<path>        YAML config file.
    --host=<host>          Listen host.
    --port=<port>          Listen port.
    --backend=<backend>    Store backend: memory or sqlite.
    --log-level=<level>    debug, info, warn or error.`

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], Version)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := resolve(opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if ok, _ := opts.Bool("config"); ok {
		out, _ := yaml.Marshal(cfg)
		os.Stdout.Write(out)
		return
	}
	if err := serve(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// resolve layers file, environment and flags, then validates.
func resolve(opts docopt.Opts) (*config.Config, error) {
	path, _ := opts.String("--config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if v, err := opts.String("--host"); err == nil && v != "" {
		cfg.Server.Host = v
	}
	if v, err := opts.String("--port"); err == nil && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%w: --port %q", config.ErrInvalid, v)
		}
		cfg.Server.Port = port
	}
	if v, err := opts.String("--backend"); err == nil && v != "" {
		cfg.Store.Backend = v
	}
	if v, err := opts.String("--log-level"); err == nil && v != "" {
		cfg.Log.Level = v
	}
	return cfg, cfg.Validate()
}

func serve(cfg *config.Config) error {
	log := logging.NewDefaultLogger(logging.ParseLevel(cfg.Log.Level))

	storeOpts, err := cfg.StoreOptions(log)
	if err != nil {
		return fmt.Errorf("failed to create store (backend=%s): %w", cfg.Store.Backend, err)
	}
	s := store.New(storeOpts...)
	defer s.Dispose()

	prometheus.MustRegister(store.Collectors()...)

	origins := cfg.Server.AllowedOrigins
	h := handler.New(s,
		handler.WithLogger(log),
		handler.WithSettings(handler.Settings{
			WriteTimeout: cfg.Watch.WriteTimeout,
			PingInterval: cfg.Watch.PingInterval,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || originAllowed(origins, origin)
			},
		}),
	)

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: corsMiddleware(h, origins),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.Info("starting", "addr", srv.Addr, "backend", cfg.Store.Backend, "version", Version)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	// Ending the streams first lets watch connections close before Shutdown
	// waits on them.
	s.Dispose()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func originAllowed(allowed []string, origin string) bool {
	return slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
}

// corsMiddleware wraps an http.Handler with CORS headers.
func corsMiddleware(next http.Handler, allowedOrigins []string) http.Handler {
	// Fast path: wildcard allows everything.
	allowAll := len(allowedOrigins) == 1 && allowedOrigins[0] == "*"

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowAll {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else if origin != "" && originAllowed(allowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
