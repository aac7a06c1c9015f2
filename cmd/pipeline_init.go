package main

import (
	"context"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sells-group/labsync/internal/chain"
	"github.com/sells-group/labsync/internal/intake"
	"github.com/sells-group/labsync/internal/llm"
	"github.com/sells-group/labsync/internal/model"
	"github.com/sells-group/labsync/internal/monitoring"
	"github.com/sells-group/labsync/internal/resilience"
	"github.com/sells-group/labsync/internal/stage"
	"github.com/sells-group/labsync/internal/store"
	anthropicpkg "github.com/sells-group/labsync/pkg/anthropic"
)

// pipelineEnv holds the store, stage services, and optional task queue used
// by the serve, stage, and mcp commands.
type pipelineEnv struct {
	Store       store.Store
	Queue       *chain.MemoryQueue // nil unless queued
	Intake      *intake.Service
	Extraction  *stage.ExtractionService
	Design      *stage.DesignService
	Allocations *stage.AllocationService
	Sweeper     *stage.Sweeper
	Collector   *monitoring.Collector
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Queue != nil {
		pe.Queue.Close()
	}
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// Handlers maps each chained stage to its service.
func (pe *pipelineEnv) Handlers() map[model.Stage]chain.Handler {
	return map[model.Stage]chain.Handler{
		model.StageExtraction: pe.Extraction.Handle,
		model.StageDesign:     pe.Design.Handle,
	}
}

// initPipeline opens the store and wires the stages. With queued set,
// extraction hands finished meetings to a task queue for design and intake
// may enqueue extraction; otherwise every stage runs only when asked.
func initPipeline(ctx context.Context, queued bool) (*pipelineEnv, error) {
	if err := cfg.Validate("pipeline"); err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	env := &pipelineEnv{Store: st, Collector: monitoring.NewCollector(st)}

	var next stage.Enqueuer
	var intakeNext intake.Enqueuer
	if queued {
		env.Queue = chain.NewMemoryQueue(cfg.Pipeline.QueueSize)
		next = env.Queue
		intakeNext = env.Queue
	}

	client := anthropicpkg.NewClient(cfg.Anthropic.Key, option.WithRequestTimeout(2*time.Minute))
	limiter := llm.NewLimiter(cfg.Anthropic.RequestsPerMinute)
	llmCfg := llm.Config{
		Model:     cfg.Anthropic.Model,
		MaxTokens: cfg.Anthropic.MaxTokens,
		Retry: resilience.FromRetryConfig(
			cfg.Anthropic.MaxAttempts,
			cfg.Anthropic.InitialBackoffMs,
			cfg.Anthropic.MaxBackoffMs,
		),
	}

	env.Extraction = stage.NewExtractionService(st,
		llm.NewGenerator(client, limiter, llmCfg, string(model.StageExtraction)), next)
	env.Design = stage.NewDesignService(st,
		llm.NewGenerator(client, limiter, llmCfg, string(model.StageDesign)))
	env.Allocations = stage.NewAllocationService(st)
	env.Sweeper = stage.NewSweeper(st, env.Extraction, env.Design)
	env.Intake = intake.NewService(st, intakeNext, queued && cfg.Pipeline.AutoExtract)
	return env, nil
}
