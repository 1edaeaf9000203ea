package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/pagecraft/pkg/cli/config"
	controller "github.com/m-mizutani/pagecraft/pkg/controller/http"
	"github.com/m-mizutani/pagecraft/pkg/infra/callback"
	"github.com/m-mizutani/pagecraft/pkg/usecase"
	"github.com/m-mizutani/pagecraft/pkg/utils/async"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var (
		serverCfg   config.Server
		githubCfg   config.GitHub
		llmCfg      config.LLM
		pipelineCfg config.Pipeline
		slackCfg    config.Slack
	)

	var flags []cli.Flag
	flags = append(flags, serverCfg.Flags()...)
	flags = append(flags, githubCfg.Flags()...)
	flags = append(flags, llmCfg.Flags()...)
	flags = append(flags, pipelineCfg.Flags()...)
	flags = append(flags, slackCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)
			addr := serverCfg.ListenAddr()

			pipeline, err := pipelineCfg.Load()
			if err != nil {
				return err
			}

			logger.Info("Starting pagecraft server",
				slog.String("addr", addr),
				slog.String("owner", githubCfg.Owner),
				slog.String("llm_provider", llmCfg.Provider),
				slog.Bool("async", serverCfg.Async),
				slog.Any("pipeline", pipeline),
			)

			githubClient, err := githubCfg.NewClient()
			if err != nil {
				return goerr.Wrap(err, "failed to create GitHub client")
			}

			llmClient, err := llmCfg.NewClient(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to create LLM client")
			}

			generator, err := usecase.NewGenerator(llmClient)
			if err != nil {
				return goerr.Wrap(err, "failed to create generator")
			}

			notifier := callback.New(
				callback.WithMaxAttempts(pipeline.NotifyMaxAttempts),
				callback.WithTimeout(pipeline.NotifyTimeout),
				callback.WithBaseDelay(pipeline.NotifyBaseDelay),
			)

			taskUC := usecase.NewTask(
				githubClient,
				generator,
				usecase.NewPublisher(githubClient, pipeline),
				notifier,
				pipeline,
				usecase.WithAlerter(slackCfg.NewAlerter()),
			)

			serverOpts := []controller.Option{
				controller.WithAddr(addr),
				controller.WithSecret(serverCfg.Secret),
			}
			var dispatcher *async.Dispatcher
			if serverCfg.Async {
				dispatcher = async.New()
				serverOpts = append(serverOpts, controller.WithAsync(dispatcher))
			}

			server, err := controller.NewServer(ctx, taskUC, serverOpts...)
			if err != nil {
				return goerr.Wrap(err, "failed to create HTTP server")
			}

			go func() {
				logger.Info("HTTP server starting", slog.String("addr", addr))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("HTTP server error", slog.Any("error", err))
				}
			}()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			select {
			case <-ctx.Done():
				logger.Info("Context cancelled, shutting down...")
			case sig := <-sigChan:
				logger.Info("Signal received, shutting down...", slog.Any("signal", sig))
			}

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown server gracefully")
			}

			if dispatcher != nil {
				roundCtx, cancelRounds := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Minute)
				defer cancelRounds()
				if err := dispatcher.Wait(roundCtx); err != nil {
					logger.Warn("Background rounds did not finish", slog.Any("error", err))
				}
			}

			logger.Info("Server shutdown complete")
			return nil
		},
	}
}
