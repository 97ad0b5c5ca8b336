package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"caoba.org/botcheck/api"
	"caoba.org/botcheck/logger"
	"caoba.org/botcheck/pipeline"
	"caoba.org/botcheck/worker"
	"github.com/spf13/cobra"
)

const workerRestartDelay = 5 * time.Second

// loadPipeline builds the analysis pipeline for every profile. The returned func
// releases the parse cache.
func loadPipeline() (pipeline.Pipeline, func(), error) {
	cfgs, err := loadProfiles()
	if err != nil {
		return nil, nil, err
	}
	analyzers, release, err := newAnalyzers(profileLangs(cfgs))
	if err != nil {
		return nil, nil, err
	}
	ppln, err := pipeline.NewAnalysisPipeline(pipeline.AnalysisParams{
		Configurations: cfgs,
		Analyzers:      analyzers,
		Timeout:        config.PipelineTimeout,
	})
	if err != nil {
		release()
		return nil, nil, err
	}
	bcLogger.Info().Msg("Pipeline loaded")
	return ppln, release, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis pipeline over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ppln, release, err := loadPipeline()
			if err != nil {
				return err
			}
			defer release()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			mux := http.NewServeMux()
			mux.HandleFunc("/", (&api.Request{Pipeline: ppln}).ProcessData)
			server := &http.Server{Addr: fmt.Sprintf(":%s", config.RestAPIPort), Handler: mux}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = server.Shutdown(shutdownCtx)
			}()

			bcLogger.Info().Msgf("REST API on %s", server.Addr)
			if err = server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
}

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Process analysis tasks from RabbitMQ",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ppln, release, err := loadPipeline()
			if err != nil {
				return err
			}
			defer release()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			bcLogger.Info().Msg("Starting worker")
			for ctx.Err() == nil {
				rmqWorker, err := worker.New(ppln)
				if err != nil {
					return fmt.Errorf("could not initialize RMQ worker: %w", err)
				}
				if err = rmqWorker.StartWorker(ctx); err == nil {
					continue
				}
				bcLogger.Err(err).Msgf("Worker returned with error. Launching new in %s", workerRestartDelay)
				select {
				case <-ctx.Done():
				case <-time.After(workerRestartDelay):
				}
			}
			return nil
		},
	}
}

func newSuperviseCmd() *cobra.Command {
	return &cobra.Command{
		Use:                "supervise <command> [args...]",
		Short:              "Run another botcheck command, folding panics into a single log record",
		Args:               cobra.MinimumNArgs(1),
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			executable, err := os.Executable()
			if err != nil {
				return err
			}
			code, err := logger.NewSupervisor(cmd.OutOrStderr()).Run(executable, args...)
			if err != nil {
				return err
			}
			if code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}
}
