package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edirooss/ptz-server/internal/config"
	"github.com/edirooss/ptz-server/internal/device"
	"github.com/edirooss/ptz-server/internal/domain/ptz"
	"github.com/edirooss/ptz-server/internal/events"
	"github.com/edirooss/ptz-server/internal/http/handler"
	mw "github.com/edirooss/ptz-server/internal/http/middleware"
	"github.com/edirooss/ptz-server/internal/infrastructure/tourmgr"
	"github.com/edirooss/ptz-server/internal/mqtt"
	"github.com/edirooss/ptz-server/internal/redis"
	"github.com/edirooss/ptz-server/internal/service"
	"github.com/edirooss/ptz-server/pkg/fmtt"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"
)

const shutdownTimeout = 10 * time.Second

var configPath string

func init() {
	// Handle version display and flags
	handleFlags()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "ptz-server failed:")
		fmtt.PrintErrChain(os.Stderr, err)
		if os.Getenv("ENV") == "dev" {
			fmtt.DumpErrChain(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func run() error {
	// Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create Zap logger
	log, err := buildLogger(cfg)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()
	log = log.Named("main")
	log.Info("starting",
		zap.String("version", config.Version),
		zap.String("commit", config.GitCommit),
		zap.String("env", cfg.Server.Env),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Event sinks (optional)
	sinks, closeSinks, err := buildSinks(log, cfg)
	if err != nil {
		return err
	}
	defer closeSinks()
	dispatcher := events.NewDispatcher(log, cfg.Events.QueueSize, sinks...)

	// Engine
	registry := device.NewRegistry(log, device.Options{
		Info: ptz.DeviceInfo{
			Manufacturer:    cfg.Device.Manufacturer,
			Model:           cfg.Device.Model,
			FirmwareVersion: cfg.Device.FirmwareVersion,
		},
		Tours: tourmgr.Options{
			SettleTime:   cfg.Engine.SettleTime,
			IdleBackoff:  cfg.Engine.IdleBackoff,
			EventLogSize: cfg.Engine.EventLogSize,
			Notifier:     dispatcher,
		},
	})
	ptzsvc := service.NewPTZService(log, registry)
	summarysvc := service.NewSummaryService(log, registry, service.SummaryOptions{
		TTL:               cfg.Summary.TTL,
		RefreshTimeout:    cfg.Summary.RefreshTimeout,
		AllowStaleOnError: cfg.Summary.AllowStaleOnError,
	})

	r := buildRouter(log, cfg, handler.NewPTZHandler(log, ptzsvc, summarysvc))

	httpsrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 2 * time.Second,  // kills header-drip Slowloris
		ReadTimeout:       10 * time.Second, // full request read (incl. body)
		WriteTimeout:      15 * time.Second, // avoid forever-hangs on writes
		IdleTimeout:       60 * time.Second, // keep-alive cap
		MaxHeaderBytes:    1 << 20,          // 1MB cap
	}

	// The dispatcher outlives the HTTP server so final tour events get delivered.
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	defer stopDispatch()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dispatcher.Run(dispatchCtx)
	})
	g.Go(func() error {
		log.Info("running HTTP server", zap.String("addr", httpsrv.Addr))
		if err := httpsrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		defer stopDispatch()

		shctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := httpsrv.Shutdown(shctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := registry.StopAll(shctx); err != nil {
			errs = append(errs, fmt.Errorf("stop tours: %w", err))
		}
		return errors.Join(errs...)
	})

	err = g.Wait()
	log.Info("server closed",
		zap.Int("devices", registry.Len()),
		zap.Uint64("events_delivered", dispatcher.Delivered()),
		zap.Uint64("events_dropped", dispatcher.Dropped()),
	)
	return err
}

// handleFlags parses flags; prints build metadata and exits when -v/--version is provided.
func handleFlags() {
	flag.StringVar(&configPath, "config", "ptz-server.yaml", "path to YAML config (optional)")
	v := flag.Bool("v", false, "print version and exit")
	flag.BoolVar(v, "version", false, "print version and exit")
	flag.Parse()

	if *v {
		fmt.Printf("ptz-server %s (commit %s, built %s)\n", config.Version, config.GitCommit, config.BuildDate)
		os.Exit(0)
	}
}

func buildRouter(log *zap.Logger, cfg *config.Config, ptzhndlr *handler.PTZHandler) *gin.Engine {
	// Create Gin router
	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = zap.NewStdLog(log.Named("gin")).Writer() // Configure Gin's logger to use Zap
	r := gin.New()

	// Apply Gin middlewares
	{
		r.Use(gin.Recovery()) // Recovery first (outermost)
		r.Use(mw.RequestID()) // Attach request ID for tracing; early in the chain so it's available everywhere

		if cfg.IsDev() { // Enable CORS for local dev
			r.Use(cors.New(cors.Config{
				AllowOrigins: cfg.Server.CORSOrigins,
				AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowHeaders: []string{
					"X-Request-ID", "Content-Type",
					mw.HeaderDeviceAddress, mw.HeaderDeviceUsername, mw.HeaderDevicePassword,
				},
				ExposeHeaders: []string{"X-Request-ID", "X-Total-Count", "X-Cache", "X-Summary-Generated-At", "Location"},
				MaxAge:        12 * time.Hour,
			}))
			pprof.Register(r) // /debug/pprof
		} else { // Behind a TLS terminating proxy
			if err := r.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
				log.Warn("invalid trusted proxies", zap.Error(err))
			}
			r.Use(secure.New(secure.Config{
				SSLProxyHeaders: map[string]string{
					"X-Forwarded-Proto": "https",
				},
				FrameDeny:          true,
				ContentTypeNosniff: true,
			}))
		}

		r.Use(accessLog(log.Named("http")))
		r.Use(mw.LimitConcurrentRequests(cfg.Server.MaxConcurrentRequests))

		r.Use(func(c *gin.Context) {
			// Enforce a hard 10MB max request body.
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 10<<20)
			c.Next()
		})
	}

	// Register route handlers
	{
		r.GET("/api/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
		r.GET("/api/devices/summary", ptzhndlr.Summary)

		dev := r.Group("/api", mw.DeviceIdentity()) // every device route needs an identity
		requireToken := mw.RequireValidToken()

		// --- Device ---
		dev.GET("/device/information", ptzhndlr.GetDeviceInformation)
		dev.GET("/device/capabilities", ptzhndlr.GetCapabilities)
		dev.GET("/device/profiles", ptzhndlr.GetProfiles)
		dev.GET("/device/stream-uri", ptzhndlr.GetStreamURI)

		// --- PTZ ---
		dev.GET("/ptz/status", ptzhndlr.GetStatus)
		dev.POST("/ptz/absolute-move", ptzhndlr.AbsoluteMove)
		dev.POST("/ptz/relative-move", ptzhndlr.RelativeMove)
		dev.POST("/ptz/continuous-move", ptzhndlr.ContinuousMove)
		dev.POST("/ptz/stop", ptzhndlr.Stop)
		dev.POST("/ptz/set-home", ptzhndlr.SetHome)
		dev.POST("/ptz/goto-home", ptzhndlr.GotoHome)
		dev.POST("/ptz/goto-preset", ptzhndlr.GotoPreset)

		// --- Presets ---
		dev.GET("/ptz/presets", ptzhndlr.ListPresets)                          // list
		dev.POST("/ptz/presets", ptzhndlr.SetPreset)                           // upsert
		dev.POST("/ptz/presets/create", ptzhndlr.CreatePreset)                 // create, 409 on clash
		dev.PUT("/ptz/presets/:token", requireToken, ptzhndlr.UpdatePreset)    // rename / move
		dev.DELETE("/ptz/presets/:token", requireToken, ptzhndlr.RemovePreset) // remove

		// --- Tours ---
		dev.GET("/ptz/tours", ptzhndlr.ListTours)
		dev.POST("/ptz/tours", ptzhndlr.CreateTour)
		dev.GET("/ptz/tours/:token", requireToken, ptzhndlr.GetTour)
		dev.PUT("/ptz/tours/:token", requireToken, ptzhndlr.ModifyTour)
		dev.DELETE("/ptz/tours/:token", requireToken, ptzhndlr.DeleteTour)
		dev.POST("/ptz/tours/:token/operate", requireToken, ptzhndlr.OperateTour)
		dev.GET("/ptz/tours/:token/status", requireToken, ptzhndlr.TourStatus)
		dev.GET("/ptz/tours/:token/events", requireToken, ptzhndlr.TourEvents)
	}

	return r
}

// buildSinks connects the configured event sinks. The returned close func
// releases their connections.
func buildSinks(log *zap.Logger, cfg *config.Config) ([]events.Sink, func(), error) {
	var (
		sinks   []events.Sink
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Redis.Enabled {
		client := redis.NewClient(cfg.Redis.Addr, cfg.Redis.DB, log) // pings once; go-redis reconnects lazily
		closers = append(closers, func() { _ = client.Close() })
		repo := redis.NewTourRepository(log, client, cfg.Redis.Channel, cfg.Redis.StatusTTL)
		sinks = append(sinks, events.NewRedisSink(repo))
	}

	if cfg.MQTT.Enabled {
		client, err := mqtt.Connect(log, mqtt.Options{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		})
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("mqtt connect: %w", err)
		}
		closers = append(closers, client.Close)
		sinks = append(sinks, events.NewMQTTSink(client, cfg.MQTT.TopicPrefix, byte(cfg.MQTT.QoS)))
	}

	return sinks, closeAll, nil
}

// accessLog is a Gin middleware that records HTTP request/response details with Zap after handling.
func accessLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		// collect all errors from Gin context
		var errs []error
		for _, ge := range c.Errors {
			if ge.Err != nil {
				errs = append(errs, ge.Err)
			}
		}
		joinedErr := errors.Join(errs...)

		fields := []zap.Field{
			zap.String("request_id", mw.GetRequestID(c)),
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
			zap.Duration("latency", latency),
		}
		if id, ok := mw.GetDeviceIdentity(c); ok {
			fields = append(fields, zap.String("device", id.Address))
		}
		if joinedErr != nil {
			fields = append(fields, zap.Error(joinedErr))
		}

		switch {
		case status >= 500:
			log.Error("request", fields...)
		case status >= 400:
			log.Warn("request", fields...)
		default:
			log.Debug("request", fields...)
		}
	}
}

// helpers

func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}

	logConfig := zap.NewDevelopmentConfig()
	if !cfg.IsDev() {
		logConfig = zap.NewProductionConfig()
		logConfig.Sampling = nil
	} else {
		logConfig.EncoderConfig.TimeKey = ""
		logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	logConfig.Level = zap.NewAtomicLevelAt(level)

	var opts []zap.Option
	if f := cfg.Logging.File; f.Path != "" {
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(&lumberjack.Logger{
				Filename:   f.Path,
				MaxSize:    f.MaxSizeMB, // megabytes
				MaxBackups: f.MaxBackups,
				MaxAge:     f.MaxAgeDays,
				Compress:   f.Compress,
			}),
			logConfig.Level,
		)
		opts = append(opts, zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, fileCore)
		}))
	}
	return logConfig.Build(opts...)
}
