package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/chris/threadbot/internal/bot"
	"github.com/chris/threadbot/internal/command"
	"github.com/chris/threadbot/internal/httpapi"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to the chat platform and serve until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.run(ctx)
		},
	}
}

func (a *app) run(ctx context.Context) error {
	registry := command.NewRegistry(command.Deps{
		Store:   a.db,
		Prompts: a.prompts,
		FAQ:     a.faq,
		Logger:  a.logger,
	})
	b := bot.New(a.platform, &bot.Dispatcher{
		Commands:    registry,
		Guards:      a.db,
		Prompts:     a.prompts,
		BotName:     botName(a.cfg.BotName),
		Instruction: a.cfg.BotInstruction,
	}, a.agent, bot.Options{
		AlertPrompt:    a.cfg.AlertPrompt,
		ContextPosts:   a.cfg.ContextPosts,
		RequestTimeout: a.cfg.RequestTimeout,
		Metrics:        a.metrics,
		Logger:         a.logger,
	})
	sched := a.scheduler()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.Run(ctx)
	})
	g.Go(func() error {
		return httpapi.Serve(ctx, a.cfg.MetricsAddr, httpapi.NewRouter(a.registry), a.logger)
	})
	g.Go(func() error {
		if err := sched.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		sched.Stop()
		return nil
	})

	err := g.Wait()
	a.logger.Info("shut down", "err", err)
	return err
}
