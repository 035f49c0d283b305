package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/pooriaast/sleuth/config"
	core "github.com/pooriaast/sleuth/internal/agent/core"
	agenttele "github.com/pooriaast/sleuth/internal/agent/telemetry"
	"github.com/pooriaast/sleuth/provider"
	"github.com/pooriaast/sleuth/session"
	"github.com/pooriaast/sleuth/tools/docindex"
	"github.com/pooriaast/sleuth/tools/websearch"
)

// Run wires the full service and serves the HTTP API. All shared
// dependencies (index, gateway, model handle, conversation store,
// telemetry) are constructed here once and injected; nothing is
// lazily-initialised global state.
func Run(cfg *appconfig.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]any{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	var tele *agenttele.Telemetry
	if cfg.Telemetry.Enabled {
		tele = agenttele.New(prometheus.DefaultRegisterer)
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	idx, err := docindex.Open(cfg.Tools.Index.Path)
	if err != nil {
		return err
	}
	defer idx.Close()
	if count, err := idx.Count(); err == nil {
		baseLogger.Printf("documentation index: %d chunks", count)
		if count == 0 {
			baseLogger.Printf("index is empty; run `sleuth index` to build it")
		}
	}

	var web core.Searcher
	if cfg.Agent.Online() {
		searcher, err := websearch.NewSearcher(websearch.Provider(cfg.Tools.WebSearch.Provider), cfg.Tools.WebSearch.APIKey)
		if err != nil {
			return err
		}
		if cache := cfg.Tools.WebSearch.Cache; cache.Enabled {
			rdb := redis.NewClient(&redis.Options{Addr: cache.Addr, Password: cache.Password, DB: cache.DB})
			searcher = websearch.NewCache(searcher, rdb, cache.TTL)
		}
		web = websearch.Tool{Searcher: searcher}
	}

	gateway := core.NewGateway(idx, web, cfg.Agent.RelevanceFloor, cfg.Agent.MaxResults, tele)

	model, err := provider.NewModelHandle(provider.Client(cfg.LLM.Provider), provider.Options{
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	})
	if err != nil {
		return err
	}

	store := session.NewStore(session.InMemoryStore)
	exec := core.NewExecutor(model, gateway, store, cfg.Agent.Mode, cfg.Agent.MaxIterations, tele)

	api := e.Group("/api")
	if cfg.Server.AuthEnabled {
		api.Use(withAuth([]byte(cfg.Server.JWTSecret)))
	}
	ch := &ChatHandler{Runner: exec, Logger: log.New(log.Writer(), "[CHAT] ", log.LstdFlags)}
	ch.Register(api)

	if cron := cfg.Ingest.ReindexCron; cron != "" {
		sched := &Scheduler{
			Cron:    cron,
			Index:   idx,
			DocsDir: cfg.Ingest.DocsDir,
			Stop:    make(chan struct{}),
			Logger:  log.New(log.Writer(), "[SCHED] ", log.LstdFlags),
		}
		if err := sched.Start(); err != nil {
			return err
		}
		defer close(sched.Stop)
	}

	baseLogger.Printf("listening on %s (mode=%s)", cfg.Server.Address, cfg.Agent.Mode)
	return e.Start(cfg.Server.Address)
}
