package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Domenick1991/aerobound/api"
	"github.com/Domenick1991/aerobound/config"
	"github.com/Domenick1991/aerobound/internal/auth"
	"github.com/Domenick1991/aerobound/internal/service/booking"
	"github.com/Domenick1991/aerobound/internal/service/flights"
	"github.com/Domenick1991/aerobound/internal/service/payment"
	"github.com/Domenick1991/aerobound/internal/service/user"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const shutdownTimeout = 5 * time.Second

type Services struct {
	Flights  flights.FlightUseCase
	Bookings booking.BookingUseCase
	Payments payment.PaymentUseCase
	Users    user.UserUseCase
}

type Servers struct {
	grpcServer *grpc.Server
	health     *health.Server
	httpServer *http.Server
	log        *logrus.Entry
}

// Run starts the gRPC health server and the HTTP API and blocks until ctx is canceled or a server fails.
func Run(ctx context.Context, cfg *config.Config, services Services, log *logrus.Entry) error {
	s := newServers(cfg, services, log)

	lis, err := net.Listen("tcp", cfg.GRPC.Address)
	if err != nil {
		return fmt.Errorf("listen gRPC %s: %w", cfg.GRPC.Address, err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.WithField("address", cfg.GRPC.Address).Info("gRPC health server started")
		return s.grpcServer.Serve(lis)
	})

	g.Go(func() error {
		s.log.WithField("address", cfg.HTTP.Address).Info("HTTP server started")
		s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		s.health.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.grpcServer.GracefulStop()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func newServers(cfg *config.Config, services Services, log *logrus.Entry) *Servers {
	grpcSrv := grpc.NewServer()
	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)

	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           otelhttp.NewHandler(NewRouter(cfg, services, log), "http"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Servers{
		grpcServer: grpcSrv,
		health:     healthSrv,
		httpServer: httpSrv,
		log:        log,
	}
}

// NewRouter wires every HTTP route of the API.
func NewRouter(cfg *config.Config, services Services, log *logrus.Entry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log), cors(cfg.HTTP.CORSOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.HTTP.SwaggerDir != "" {
		r.Static("/swagger", cfg.HTTP.SwaggerDir)
		r.GET("/docs/*any", gin.WrapH(httpSwagger.Handler(httpSwagger.URL("/swagger/payments.swagger.json"))))
	}

	requireAuth := auth.Middleware(cfg.Auth.JWTSecret, services.Users)
	root := r.Group("")
	api.NewUserHandler(services.Users).Register(root, requireAuth)
	api.NewFlightHandler(services.Flights).Register(root, requireAuth)
	api.NewBookingHandler(services.Bookings).Register(root, requireAuth)
	api.NewPaymentHandler(services.Payments).Register(r.Group("/payments"), requireAuth)

	return r
}

func requestLogger(log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request served")
	}
}

// cors allows the configured browser origins. "*" allows any origin.
func cors(origins []string) gin.HandlerFunc {
	allowAll := lo.Contains(origins, "*")
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowAll || lo.Contains(origins, origin)) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			h.Set("Access-Control-Allow-Methods", strings.Join([]string{
				http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
			}, ", "))
			h.Add("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
