// Package queue runs drawing analyses from a Redis-backed task queue, for
// deployments where uploads arrive faster than the inference backend can
// process them.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"github.com/blueplan/drawing-analyzer/internal/logging"
	"github.com/blueplan/drawing-analyzer/pkg/types"
)

// TypeAnalyzeDrawing is the task type of one queued analysis.
const TypeAnalyzeDrawing = "drawing:analyze"

// AnalyzePayload describes one queued analysis job.
type AnalyzePayload struct {
	InputPath  string `json:"input_path"`
	OutputPath string `json:"output_path"`
	TileSize   int    `json:"tile_size,omitempty"`
	Overlap    int    `json:"overlap,omitempty"`
}

// Runner is the analysis entry point the worker drives; the facade satisfies
// it through a small adapter in the command layer.
type Runner func(ctx context.Context, payload AnalyzePayload) (*types.Result, error)

// Enqueue submits one analysis job.
func Enqueue(redisURL, queueName string, payload AnalyzePayload) error {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return fmt.Errorf("invalid redis url: %w", err)
	}
	client := asynq.NewClient(opt)
	defer client.Close()

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	info, err := client.Enqueue(
		asynq.NewTask(TypeAnalyzeDrawing, data),
		asynq.Queue(queueName),
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Minute),
	)
	if err != nil {
		return fmt.Errorf("enqueue failed: %w", err)
	}

	logging.NewLogger("queue").Info("job enqueued", "id", info.ID, "input", payload.InputPath)
	return nil
}

// Worker consumes analysis jobs until its context is cancelled.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *logging.Logger
}

// NewWorker builds a worker over the given Redis instance. Failed jobs retry
// with exponential delay.
func NewWorker(redisURL, queueName string, concurrency int, run Runner) (*Worker, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	log := logging.NewLogger("queue")
	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queueName: 1},
		RetryDelayFunc: func(n int, _ error, _ *asynq.Task) time.Duration {
			return time.Duration(math.Pow(2, float64(n))) * time.Second
		},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeAnalyzeDrawing, func(ctx context.Context, task *asynq.Task) error {
		var payload AnalyzePayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("malformed payload: %w: %w", err, asynq.SkipRetry)
		}

		log.Info("job started", "input", payload.InputPath)
		res, err := run(ctx, payload)
		if err != nil {
			log.Error("job failed", "input", payload.InputPath, "error", err)
			return err
		}
		if err := writeResult(payload.OutputPath, res); err != nil {
			return err
		}
		log.Info("job finished",
			"input", payload.InputPath,
			"records", len(res.Records),
			"success_rate", res.Stats.SuccessRate())
		return nil
	})

	return &Worker{server: server, mux: mux, log: log}, nil
}

// Run blocks serving jobs until the process receives a shutdown signal.
func (w *Worker) Run() error {
	w.log.Info("worker starting")
	return w.server.Run(w.mux)
}

func writeResult(path string, res *types.Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write result: %w", err)
	}
	return nil
}
