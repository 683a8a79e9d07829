// Command drawing-analyzer analyzes oversized raster engineering drawings
// from the command line or as a queue worker.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	drawinganalyzer "github.com/blueplan/drawing-analyzer"
	"github.com/blueplan/drawing-analyzer/internal/config"
	"github.com/blueplan/drawing-analyzer/internal/queue"
	"github.com/blueplan/drawing-analyzer/pkg/imageio"
	"github.com/blueplan/drawing-analyzer/pkg/types"
)

var version = "dev"

func main() {
	// Missing .env is fine; the environment stands on its own.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "drawing-analyzer",
		Short:         "Tiled dual-track analysis of engineering drawings",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newAnalyzeCmd(), newEnqueueCmd(), newWorkerCmd(), newVersionCmd())
	return root
}

func newAnalyzeCmd() *cobra.Command {
	var (
		out      string
		backend  string
		model    string
		url      string
		tileSize int
		overlap  int
	)

	cmd := &cobra.Command{
		Use:   "analyze <drawing>",
		Short: "Analyze one drawing and write the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if backend != "" {
				cfg.Backend = backend
			}
			if model != "" {
				cfg.Model = model
			}
			if url != "" {
				cfg.OllamaURL = url
				cfg.LlamaCppURL = url
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			analyzer, err := drawinganalyzer.NewFromConfig(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			res, err := analyzer.AnalyzeFile(cmd.Context(), args[0], drawinganalyzer.Options{
				TileSize: tileSize,
				Overlap:  overlap,
			})
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(append(data, '\n'))
				return err
			}
			return os.WriteFile(out, data, 0o644)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&backend, "backend", "", "inference backend: ollama, llamacpp, or gemini")
	cmd.Flags().StringVar(&model, "model", "", "vision model name")
	cmd.Flags().StringVar(&url, "url", "", "inference server URL")
	cmd.Flags().IntVar(&tileSize, "tile-size", 0, "tile edge in pixels (default from config)")
	cmd.Flags().IntVar(&overlap, "overlap", 0, "tile overlap in pixels (default from config)")
	return cmd
}

func newEnqueueCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "enqueue <drawing>",
		Short: "Submit one drawing to the analysis queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.RedisURL == "" {
				return fmt.Errorf("enqueue requires REDIS_URL")
			}
			if out == "" {
				out = args[0] + ".result.json"
			}
			return queue.Enqueue(cfg.RedisURL, cfg.QueueName, queue.AnalyzePayload{
				InputPath:  args[0],
				OutputPath: out,
			})
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "result file (default <drawing>.result.json)")
	return cmd
}

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume queued analyses until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.RedisURL == "" {
				return fmt.Errorf("worker requires REDIS_URL")
			}

			analyzer, err := drawinganalyzer.NewFromConfig(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			run := func(ctx context.Context, payload queue.AnalyzePayload) (*types.Result, error) {
				img, err := imageio.Load(payload.InputPath)
				if err != nil {
					return nil, err
				}
				return analyzer.Analyze(ctx, img, drawinganalyzer.Options{
					TileSize: payload.TileSize,
					Overlap:  payload.Overlap,
				})
			}

			worker, err := queue.NewWorker(cfg.RedisURL, cfg.QueueName, cfg.QueueConcurrency, run)
			if err != nil {
				return err
			}
			return worker.Run()
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
