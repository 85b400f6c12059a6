// Package app wires the payment server together.
package app

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/crackers-checkout/internal/domain/payment"
	"github.com/xenking/crackers-checkout/internal/gateway/razorpay"
	"github.com/xenking/crackers-checkout/internal/handler"
	"github.com/xenking/crackers-checkout/internal/storage/postgres"
	"github.com/xenking/crackers-checkout/pkg/health"
	"github.com/xenking/crackers-checkout/pkg/httpmiddleware"
)

// Version is reported by the "/" banner.
const Version = "1.0.0"

// Server is the assembled payment API.
type Server struct {
	cfg     *Config
	lg      *zap.Logger
	health  *health.Health
	handler http.Handler
	closers []func()
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	s, err := New(ctx, lg, m.TracerProvider(), m.MeterProvider(), cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.Serve(ctx)
}

// New builds the server without listening. The ledger database is optional;
// without it payment events are not recorded.
func New(ctx context.Context, lg *zap.Logger, tp trace.TracerProvider, mp metric.MeterProvider, cfg *Config) (*Server, error) {
	s := &Server{cfg: cfg, lg: lg, health: health.New()}

	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("gateway", cfg.Razorpay.BaseURL),
		zap.Strings("cors_origins", cfg.CORSOrigins()),
		zap.Bool("ledger", cfg.DatabaseURL != ""),
	)

	var recorder payment.Recorder = payment.NopRecorder{}
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		s.closers = append(s.closers, pool.Close)

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			s.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		recorder = postgres.NewPaymentRecorder(pool)
		s.health.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	}

	s.health.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	s.health.AddLivenessCheck("gc_pause", time.Second, health.GCMaxPauseCheck(time.Second))

	gatewayHTTP := &http.Client{
		Timeout: cfg.Razorpay.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithTracerProvider(tp),
			otelhttp.WithMeterProvider(mp),
		),
	}
	gateway := razorpay.NewClient(razorpay.Config{
		KeyID:     cfg.Razorpay.KeyID,
		KeySecret: cfg.Razorpay.KeySecret,
		BaseURL:   cfg.Razorpay.BaseURL,
	}, gatewayHTTP)

	svc, err := payment.NewService(gateway, payment.NewVerifier(cfg.Razorpay.KeySecret), recorder, tp, mp)
	if err != nil {
		s.Close()
		return nil, errors.Wrap(err, "create payment service")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", s.health.LiveEndpoint)
	mux.HandleFunc("GET /readyz", s.health.ReadyEndpoint)
	handler.New(svc, handler.Config{
		Version:     Version,
		Development: cfg.Development,
	}).Register(mux)

	s.handler = httpmiddleware.Wrap(mux,
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.RequestID(),
		httpmiddleware.Recovery(cfg.Development),
		httpmiddleware.Instrument("payment-api", tp, mp),
		httpmiddleware.LogRequests(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORSOrigins(),
			AllowMethods:     []string{http.MethodGet, http.MethodPost},
			AllowHeaders:     []string{"Content-Type", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
	)
	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Close releases the ledger pool and stops health checks.
func (s *Server) Close() {
	s.health.Stop()
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// Serve listens on cfg.Addr until ctx is cancelled, then drains.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return errors.Wrap(err, "listen")
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// Order creation waits on the gateway.
		WriteTimeout:   s.cfg.Razorpay.Timeout + 5*time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Handler:        s.handler,
		BaseContext:    func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	s.health.Start(ctx, 10*time.Second)
	s.health.SetReady(true)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.lg.Info("Server listening", zap.String("addr", ln.Addr().String()))
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.health.SetReady(false)
		if ctx.Err() != nil {
			s.lg.Info("Readiness set to false, draining", zap.Duration("delay", s.cfg.Graceful.ReadinessDelay))
			time.Sleep(s.cfg.Graceful.ReadinessDelay)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Graceful.ShutdownTimeout)
		defer cancel()

		s.lg.Info("Shutting down server", zap.Duration("timeout", s.cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	return g.Wait()
}
