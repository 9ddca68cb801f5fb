package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dodohu918/Medical-chatbot/internal/config"
	"github.com/dodohu918/Medical-chatbot/internal/handler"
	"github.com/dodohu918/Medical-chatbot/internal/model/flow"
	"github.com/dodohu918/Medical-chatbot/internal/service/ai"
	"github.com/dodohu918/Medical-chatbot/internal/service/notify"
	"github.com/dodohu918/Medical-chatbot/internal/service/triage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	graph, err := flow.LoadDir(cfg.Flows.Dir)
	if err != nil {
		log.Fatalf("failed to load flow graph: %v", err)
	}
	log.Printf("merged flow graph has %d nodes: %v", graph.Len(), graph.IDs())

	classifier, summarizer := buildAdapters(ctx, cfg.AI)

	var notifier triage.Notifier
	if cfg.Mail.Enabled() {
		mailer, err := notify.NewMailer(cfg.Mail)
		if err != nil {
			log.Printf("warning: failed to initialize mailer: %v", err)
			log.Println("continuing without summary mail delivery")
		} else {
			notifier = mailer
			log.Println("summary mailer initialized successfully")
		}
	} else {
		log.Println("SMTP 凭证未配置，跳过总结邮件功能")
	}

	store := triage.NewMemoryStore()
	engine := triage.NewEngine(graph, classifier, summarizer, notifier)
	router := handler.NewRouter(store, engine)

	startServer(ctx, cfg.Server, router)
}

// buildAdapters 初始化分类与总结适配器。模型不可用时两者都退化为
// 只返回默认值的实现，对话流程不受影响。
func buildAdapters(ctx context.Context, aiCfg config.AIConfig) (*ai.Classifier, *ai.Summarizer) {
	if !aiCfg.Enabled() {
		log.Println("Ark 凭证未配置，分类与总结均使用默认回退")
		classifier, _ := ai.NewClassifier(ctx, nil)
		summarizer, _ := ai.NewSummarizer(ctx, nil)
		return classifier, summarizer
	}

	// 分类要求确定性输出，总结允许一定发挥。
	classifyModel, err := aiCfg.NewChatModel(ctx, 0)
	if err != nil {
		log.Printf("warning: failed to create classification model: %v", err)
	}
	summarizeModel, err := aiCfg.NewChatModel(ctx, 0.7)
	if err != nil {
		log.Printf("warning: failed to create summarization model: %v", err)
	}

	classifier, err := ai.NewClassifier(ctx, classifyModel)
	if err != nil {
		log.Printf("warning: failed to initialize classifier: %v", err)
		classifier, _ = ai.NewClassifier(ctx, nil)
	}
	summarizer, err := ai.NewSummarizer(ctx, summarizeModel)
	if err != nil {
		log.Printf("warning: failed to initialize summarizer: %v", err)
		summarizer, _ = ai.NewSummarizer(ctx, nil)
	}

	log.Println("AI adapters initialized successfully")
	return classifier, summarizer
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Medical chatbot backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
