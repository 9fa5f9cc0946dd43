package main

import (
	"context"
	"expvar"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"reviewhooks/internal"
	"reviewhooks/pkg/bus"
	"reviewhooks/pkg/dispatch"
	"reviewhooks/pkg/entity"
	"reviewhooks/pkg/forward"
	"reviewhooks/pkg/llm"
	"reviewhooks/pkg/notify"
	"reviewhooks/pkg/report"
	"reviewhooks/pkg/review"
	"reviewhooks/pkg/store"
	"reviewhooks/webhook"
)

func main() {
	logger := internal.NewLogger("server")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	config, err := internal.LoadConfig(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	registry, err := internal.NewRegistry(config.Providers, config.DefaultProvider)
	if err != nil {
		logger.Fatalf("providers: %v", err)
	}

	skips, err := internal.NewSkipRuleEngine(config.SkipRules, logger)
	if err != nil {
		logger.Fatalf("compile skip rules: %v", err)
	}

	reviewStore, err := store.Open(store.Config{
		Driver:      config.Storage.Driver,
		DSN:         config.Storage.DSN,
		AutoMigrate: config.Storage.AutoMigrate,
	})
	if err != nil {
		logger.Fatalf("storage: %v", err)
	}
	defer reviewStore.Close()

	engine, err := llm.New(llm.Config{
		BaseURL: config.LLM.BaseURL,
		APIKey:  config.LLM.APIKey,
		Model:   config.LLM.Model,
		Timeout: time.Duration(config.LLM.TimeoutMS) * time.Millisecond,
	})
	if err != nil {
		logger.Fatalf("llm: %v", err)
	}

	renderer, err := report.New(config.Reports.Dir)
	if err != nil {
		logger.Fatalf("reports: %v", err)
	}

	notifier := notify.New(config.Notifier)

	var forwarder *forward.Forwarder
	if config.Forward.Enabled {
		publisher, err := forward.NewMux(config.Forward)
		if err != nil {
			logger.Fatalf("forward: %v", err)
		}
		forwarder = forward.NewForwarder(publisher, config.Forward.PublishRetry)
		defer forwarder.Close()
	}

	completionBus := bus.New(busConfig(reviewStore, notifier, renderer, forwarder))

	reviewService := review.New(config.Review, engine, reviewStore, skips, completionBus)
	router := dispatch.NewRouter()
	reviewService.Register(router)

	queue := dispatch.NewQueue(config.Queue, internal.NewLogger("dispatch"))

	reports := webhook.NewReportsHandler(reviewStore, renderer)
	mux := http.NewServeMux()
	mux.HandleFunc("/", webhook.Index)
	mux.Handle("/review_webhook", webhook.NewHandler(registry, router, queue, config.Server.MaxBodyBytes))
	mux.HandleFunc("/reports", reports.List)
	mux.HandleFunc("/reports/", reports.View("/reports/"))
	mux.HandleFunc("/daily_report", reports.Daily)
	if config.Server.MetricsEnabled {
		mux.Handle(config.Server.MetricsPath, expvar.Handler())
	}

	handler := internal.NewRateLimitHandler(mux, config.Server.RateLimitRPS, config.Server.RateLimitBurst)

	addr := ":" + strconv.Itoa(config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       time.Duration(config.Server.ReadTimeoutMS) * time.Millisecond,
		WriteTimeout:      time.Duration(config.Server.WriteTimeoutMS) * time.Millisecond,
		IdleTimeout:       time.Duration(config.Server.IdleTimeoutMS) * time.Millisecond,
		ReadHeaderTimeout: time.Duration(config.Server.ReadHeaderMS) * time.Millisecond,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Printf("listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("listen: %v", err)
		}
	}()

	<-shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Printf("shutdown: %v", err)
	}
	if err := queue.Close(); err != nil {
		logger.Printf("queue drain: %v", err)
	}
}

// busConfig fixes the completion subscribers. Order matters: persistence
// first so dedup sees the review before anything user facing runs.
func busConfig(st store.Store, notifier *notify.Notifier, renderer *report.Renderer, forwarder *forward.Forwarder) bus.Config {
	cfg := bus.Config{
		OnMergeRequestReviewed: []bus.MergeRequestSubscriber{
			{Name: "store", Fn: func(e *entity.MergeRequestReview) error {
				return st.InsertMergeRequestReview(context.Background(), e)
			}},
			{Name: "notify", Fn: func(e *entity.MergeRequestReview) error {
				notifier.MergeRequestReviewed(context.Background(), e)
				return nil
			}},
			{Name: "report", Fn: func(e *entity.MergeRequestReview) error {
				return saveMergeRequestReport(renderer, e)
			}},
		},
		OnPushReviewed: []bus.PushSubscriber{
			{Name: "store", Fn: func(e *entity.PushReview) error {
				return st.InsertPushReview(context.Background(), e)
			}},
			{Name: "notify", Fn: func(e *entity.PushReview) error {
				notifier.PushReviewed(context.Background(), e)
				return nil
			}},
			{Name: "report", Fn: func(e *entity.PushReview) error {
				return savePushReport(renderer, e)
			}},
		},
	}
	if forwarder != nil {
		cfg.OnMergeRequestReviewed = append(cfg.OnMergeRequestReviewed, forwarder.MergeRequestSubscriber())
		cfg.OnPushReviewed = append(cfg.OnPushReviewed, forwarder.PushSubscriber())
	}
	return cfg
}

func saveMergeRequestReport(renderer *report.Renderer, e *entity.MergeRequestReview) error {
	name := fmt.Sprintf("%s-mr-%s-%s", e.ProjectName, e.SourceBranch, shortSHA(e.LastCommitID))
	title := fmt.Sprintf("%s: %s into %s", e.ProjectName, e.SourceBranch, e.TargetBranch)
	_, err := renderer.Save(name, title, e.ReviewResult, time.Unix(e.UpdatedAt, 0))
	return err
}

func savePushReport(renderer *report.Renderer, e *entity.PushReview) error {
	name := fmt.Sprintf("%s-push-%s-%s", e.ProjectName, e.Branch, shortSHA(e.AfterSHA))
	title := fmt.Sprintf("%s: push to %s", e.ProjectName, e.Branch)
	_, err := renderer.Save(name, title, e.ReviewResult, time.Unix(e.UpdatedAt, 0))
	return err
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
