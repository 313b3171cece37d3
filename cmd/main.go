package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"a2ui-agent/handler"
	"a2ui-agent/internal/config"
	"a2ui-agent/internal/integrations/anthropic"
	"a2ui-agent/internal/integrations/openai"
	"a2ui-agent/internal/integrations/paramstore"
	"a2ui-agent/internal/repository"
	"a2ui-agent/internal/schema"
	"a2ui-agent/internal/usecase"
)

func main() {
	ctx := context.Background()
	inLambda := os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
	if inLambda {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	}
	logger := slog.Default()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}

	llm, err := newCompleter(cfg, ssmClient)
	if err != nil {
		slog.Error("failed to create completion client", "provider", cfg.Provider, "err", err)
		os.Exit(1)
	}

	// ---- Schema and prompt examples ----
	source := paramOrDefault(ctx, ssmClient, cfg.SchemaParam, string(schema.DefaultSource()))
	var validator usecase.SchemaValidator
	if loaded := schema.LoadOrDegrade([]byte(source), logger); loaded != nil {
		validator = loaded
	}
	examples := paramOrDefault(ctx, ssmClient, cfg.ExamplesParam, usecase.DefaultExamples())

	// ---- Generation ----
	gen, err := usecase.NewGenerator(llm, validator, usecase.GeneratorConfig{
		Model:               cfg.Model,
		MaxTokens:           cfg.MaxTokens,
		MaxAttempts:         cfg.MaxAttempts,
		SystemPrompt:        usecase.DefaultSystemPrompt(examples),
		UseStructuredOutput: cfg.UseStructuredOutput,
		BaseURL:             cfg.APIBaseURL,
	}, usecase.WithLogger(logger))
	if err != nil {
		slog.Error("failed to create generator", "err", err)
		os.Exit(1)
	}

	svcOpts := []usecase.ServiceOption{
		usecase.WithMaxQueryLength(cfg.MaxQueryLength),
		usecase.WithMaxSessionGenerations(cfg.MaxSessionGenerations),
		usecase.WithServiceLogger(logger),
	}
	if cfg.StateTable != "" {
		recorder, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.StateTable)
		if err != nil {
			slog.Error("failed to create state client", "err", err)
			os.Exit(1)
		}
		svcOpts = append(svcOpts, usecase.WithRecorder(recorder))
	}
	svc, err := usecase.NewGenerateService(gen, svcOpts...)
	if err != nil {
		slog.Error("failed to create generate service", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	h, err := handler.NewHandler(svc, handler.WithLogger(logger))
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	if inLambda {
		lambda.Start(h.Handle)
		return
	}

	stream, err := handler.NewStreamHandler(svc, logger)
	if err != nil {
		slog.Error("failed to create stream handler", "err", err)
		os.Exit(1)
	}
	card := handler.NewAgentCard(cfg.APIBaseURL, cfg.Model, cfg.UseStructuredOutput)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler.NewMux(h, stream, card),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("listening", "addr", cfg.ListenAddr, "model", cfg.Model, "structured_output", cfg.UseStructuredOutput)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

// paramOrDefault returns the value of an optional SSM parameter, or def when
// the parameter is unset, missing or unreadable.
func paramOrDefault(ctx context.Context, ps *paramstore.Client, name, def string) string {
	if name == "" {
		return def
	}
	value, found, err := ps.GetOptional(ctx, name)
	switch {
	case err != nil:
		slog.Warn("failed to read parameter, using bundled default", "param", name, "err", err)
		return def
	case !found:
		return def
	default:
		return value
	}
}

func newCompleter(cfg config.Config, ps *paramstore.Client) (usecase.Completer, error) {
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return openai.NewClient(ps, cfg.ParamPrefix,
			openai.WithBaseURL(cfg.CompletionBaseURL),
			openai.WithHTTPClient(httpClient),
			openai.WithAPIKey(cfg.APIKey))
	default:
		return anthropic.NewClient(ps, cfg.ParamPrefix,
			anthropic.WithBaseURL(cfg.CompletionBaseURL),
			anthropic.WithHTTPClient(httpClient),
			anthropic.WithAPIKey(cfg.APIKey))
	}
}
