package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/fitfolio/internal/config"
	"github.com/hitoshi/fitfolio/internal/flow"
	"github.com/hitoshi/fitfolio/internal/handler"
	"github.com/hitoshi/fitfolio/internal/logger"
	"github.com/hitoshi/fitfolio/internal/metrics"
	"github.com/hitoshi/fitfolio/internal/middleware"
	"github.com/hitoshi/fitfolio/internal/model"
	"github.com/hitoshi/fitfolio/internal/security"
	"github.com/hitoshi/fitfolio/internal/session"
	"github.com/hitoshi/fitfolio/internal/view"
	"github.com/hitoshi/fitfolio/internal/worker/cleanup"
)

// shutdownTimeout はグレースフルシャットダウンの待ち時間。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルを反映する
	logger.SetLevel(cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	return runServe(cfg)
}

// server はserveモードで動く全コンポーネントを束ねる。
type server struct {
	http    *http.Server
	store   *session.Store
	limiter *middleware.RateLimiter
	cleanup *cleanup.CleanupJob
	sweep   time.Duration
}

// newServer は設定から全依存関係をワイヤリングする。
func newServer(cfg *config.Config, log *slog.Logger) (*server, error) {
	// 1. セッションストア
	store := session.NewStore(session.Config{TTL: cfg.SessionTTL()})

	// 2. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 3. 画面フローと描画
	renderer, err := view.NewRenderer()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	flowService := handler.NewFlowService(
		flow.NewRunner(cfg.AnalysisStepDelay),
		security.NewInputSanitizer(security.DefaultMaxInputRunes),
		collector,
		log,
	)

	// 4. ルーターの構築
	limiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral))

	deps := &handler.RouterDeps{
		Sessions: store,
		SessionCookie: middleware.SessionCookieConfig{
			MaxAge:       cfg.SessionMaxAge,
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       limiter,
		Logger:            log,

		Metrics:  collector,
		Gatherer: reg,

		Flow:     flowService,
		Renderer: renderer,
		Catalog:  model.DefaultCatalog(),
	}

	return &server{
		http: &http.Server{
			Addr:         ":" + cfg.ServerPort,
			Handler:      handler.NewRouter(deps),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		store:   store,
		limiter: limiter,
		cleanup: cleanup.NewCleanupJob(store, collector, log),
		sweep:   cfg.SessionSweepInterval,
	}, nil
}

// run はlnでHTTPサーバーとセッションクリーンアップジョブを起動し、
// ctxが終了するとグレースフルシャットダウンする。
func (s *server) run(ctx context.Context, ln net.Listener) error {
	defer s.limiter.Stop()
	defer s.store.Close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("web server starting", slog.String("addr", ln.Addr().String()))
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		s.cleanup.Start(gctx, s.sweep)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down web server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("web server stopped gracefully")
	return nil
}

// runServe はWebサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーとセッションクリーンアップジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	srv, err := newServer(cfg, slog.Default())
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", srv.http.Addr)
	if err != nil {
		srv.store.Close()
		srv.limiter.Stop()
		return fmt.Errorf("failed to listen on %s: %w", srv.http.Addr, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.run(ctx, ln)
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
