// Command cpplab starts an http server that compiles, runs and profiles C++
// programs submitted as source text.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/cpplab/cpplab/builder"
	"github.com/cpplab/cpplab/cmd/cpplab/config"
	restexecutor "github.com/cpplab/cpplab/cmd/cpplab/rest_executor"
	"github.com/cpplab/cpplab/cmd/cpplab/version"
	wsexecutor "github.com/cpplab/cpplab/cmd/cpplab/ws_executor"
	"github.com/cpplab/cpplab/runner"
	"github.com/cpplab/cpplab/store"
	"github.com/cpplab/cpplab/toolchain"
	"github.com/cpplab/cpplab/worker"
)

var logger *zap.Logger

func main() {
	conf := loadConf()
	if conf.Version {
		fmt.Println(version.Version)
		return
	}
	initLogger(conf)
	defer logger.Sync()
	if ce := logger.Check(zap.InfoLevel, "Config loaded"); ce != nil {
		ce.Write(zap.String("config", fmt.Sprintf("%+v", conf)))
	}

	st := store.New(conf.StoreFile)
	st.Load()
	reapExpired(st)

	tc, err := toolchain.Load(conf.ToolchainConf)
	if err != nil {
		logger.Fatal("load toolchain config failed", zap.Error(err))
	}
	logger.Info("Toolchain loaded",
		zap.String("compiler", tc.Compiler),
		zap.Strings("compileFlags", tc.CompileFlags),
		zap.String("profiler", tc.Profiler))

	work := newWorker(conf, st, tc)
	work.Start()
	logger.Info("Worker started",
		zap.Int("parallelism", conf.Parallelism),
		zap.String("workDir", conf.WorkDir),
		zap.Duration("runTimeout", conf.RunTimeout),
		zap.Duration("retention", conf.Retention))

	servers := []initFunc{
		cleanUpWorker(work),
		initHTTPServer(conf, work),
		initMonitorHTTPServer(conf),
	}

	// Gracefully shutdown, with signal / HTTP server / Monitor HTTP server
	sig := make(chan os.Signal, 1+len(servers))

	stops := []stopFunc{}
	for _, s := range servers {
		start, stop := s()
		if start != nil {
			go func() {
				start()
				sig <- os.Interrupt
			}()
		}
		if stop != nil {
			stops = append(stops, stop)
		}
	}

	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	signal.Reset(syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Shutting Down...")

	ctx, cancel := context.WithTimeout(context.TODO(), time.Second*3)
	defer cancel()

	var eg errgroup.Group
	for _, s := range stops {
		s := s
		eg.Go(func() error {
			return s(ctx)
		})
	}

	go func() {
		logger.Info("Shutdown Finished", zap.Error(eg.Wait()))
		cancel()
	}()
	<-ctx.Done()
}

func loadConf() *config.Config {
	var conf config.Config
	if err := conf.Load(); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		log.Fatalln("load config failed ", err)
	}
	return &conf
}

type (
	stopFunc func(ctx context.Context) error
	initFunc func() (start func(), cleanUp stopFunc)
)

func initLogger(conf *config.Config) {
	if conf.Silent {
		logger = zap.NewNop()
		return
	}

	var err error
	if conf.Release {
		logger, err = zap.NewProduction()
	} else {
		config := zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		if !conf.EnableDebug {
			config.Level.SetLevel(zap.InfoLevel)
		}
		logger, err = config.Build()
	}
	if err != nil {
		log.Fatalln("init logger failed ", err)
	}
}

// reapExpired runs the startup sweep; per-run sweeps happen inside the runner.
func reapExpired(st *store.Store) {
	removed, errs := st.Sweep(time.Now())
	for _, id := range removed {
		logger.Info("Cleaned up expired file", zap.String("id", id))
	}
	for _, e := range errs {
		logger.Error("Cleanup failed", zap.String("id", e.ID), zap.Error(e.Err))
	}
}

func newWorker(conf *config.Config, st *store.Store, tc toolchain.Config) worker.Worker {
	b := builder.New(builder.Config{
		Store:     st,
		Toolchain: tc,
		WorkDir:   conf.WorkDir,
		Retention: conf.Retention,
		Logger:    logger,
	})
	r := runner.New(runner.Config{
		Store:     st,
		Toolchain: tc,
		Timeout:   conf.RunTimeout,
		Logger:    logger,
	})
	var observer func(worker.Response)
	if conf.EnableMetrics {
		observer = execObserverWith(st)
	}
	return worker.New(worker.Config{
		Builder:      b,
		Runner:       r,
		Parallelism:  conf.Parallelism,
		ExecObserver: observer,
	})
}

func cleanUpWorker(work worker.Worker) initFunc {
	return func() (start func(), cleanUp stopFunc) {
		return nil, func(ctx context.Context) error {
			work.Shutdown()
			logger.Info("Worker shutdown")
			return nil
		}
	}
}

func initHTTPServer(conf *config.Config, work worker.Worker) initFunc {
	return func() (start func(), cleanUp stopFunc) {
		r := initHTTPMux(conf, work)
		srv := http.Server{
			Addr:    conf.HTTPAddr,
			Handler: r,
		}

		return func() {
				logger.Info("Starting http server", zap.String("addr", conf.HTTPAddr))
				if err := srv.ListenAndServe(); errors.Is(err, http.ErrServerClosed) {
					logger.Info("Http server stopped", zap.Error(err))
				} else {
					logger.Error("Http server stopped", zap.Error(err))
				}
			}, func(ctx context.Context) error {
				logger.Info("Http server shutting down")
				return srv.Shutdown(ctx)
			}
	}
}

func initMonitorHTTPServer(conf *config.Config) initFunc {
	return func() (start func(), cleanUp stopFunc) {
		mr := initMonitorHTTPMux(conf)
		if mr == nil {
			return nil, nil
		}
		msrv := http.Server{
			Addr:    conf.MonitorAddr,
			Handler: mr,
		}
		return func() {
				logger.Info("Starting monitoring http server", zap.String("addr", conf.MonitorAddr))
				logger.Info("Monitoring http server stopped", zap.Error(msrv.ListenAndServe()))
			}, func(ctx context.Context) error {
				logger.Info("Monitoring http server shutdown")
				return msrv.Shutdown(ctx)
			}
	}
}

func initHTTPMux(conf *config.Config, work worker.Worker) http.Handler {
	var r *gin.Engine
	if conf.Release {
		gin.SetMode(gin.ReleaseMode)
	}
	r = gin.New()
	r.Use(ginzap.Ginzap(logger, "", false))
	r.Use(ginzap.RecoveryWithZap(logger, true))

	// Metrics Handle
	if conf.EnableMetrics {
		initGinMetrics(r)
	}

	// Version handle
	r.GET("/version", generateHandleVersion(conf))

	// Config handle
	r.GET("/config", generateHandleConfig(conf))

	// Add auth token
	if conf.AuthToken != "" {
		r.Use(tokenAuth(conf.AuthToken))
		logger.Info("Attach token auth", zap.String("token", conf.AuthToken))
	}

	// Rest Handle
	programHandle := restexecutor.NewProgramHandle(work, logger)
	programHandle.Register(r)

	// WebSocket Handle
	wsHandle := wsexecutor.New(work, logger)
	wsHandle.Register(r)

	return r
}

func initMonitorHTTPMux(conf *config.Config) http.Handler {
	if !conf.EnableMetrics && !conf.EnableDebug {
		return nil
	}
	mux := http.NewServeMux()
	if conf.EnableMetrics {
		mux.Handle("/metrics", promhttp.Handler())
	}
	if conf.EnableDebug {
		initDebugRoute(mux)
	}
	return mux
}

func initDebugRoute(mux *http.ServeMux) {
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
}

func initGinMetrics(r *gin.Engine) {
	p := ginprometheus.NewWithConfig(ginprometheus.Config{
		Subsystem:          "gin",
		DisableBodyReading: true,
	})
	p.ReqCntURLLabelMappingFn = func(c *gin.Context) string {
		return c.FullPath()
	}
	r.Use(p.HandlerFunc())
}

func tokenAuth(token string) gin.HandlerFunc {
	const bearer = "Bearer "
	return func(c *gin.Context) {
		reqToken := c.GetHeader("Authorization")
		if strings.HasPrefix(reqToken, bearer) && reqToken[len(bearer):] == token {
			c.Next()
			return
		}
		c.AbortWithStatus(http.StatusUnauthorized)
	}
}

func generateHandleVersion(_ *config.Config) func(*gin.Context) {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"buildVersion": version.Version,
			"goVersion":    runtime.Version(),
			"platform":     runtime.GOARCH,
			"os":           runtime.GOOS,
		})
	}
}

func generateHandleConfig(conf *config.Config) func(*gin.Context) {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"workDir":    conf.WorkDir,
			"storeFile":  conf.StoreFile,
			"retention":  conf.Retention.String(),
			"runTimeout": conf.RunTimeout.String(),
		})
	}
}
