package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/netpilot/netpilot/pkg/catalog"
	"github.com/netpilot/netpilot/pkg/cmd"
	"github.com/netpilot/netpilot/pkg/engine"
	"github.com/netpilot/netpilot/pkg/log"
	"github.com/netpilot/netpilot/pkg/otelhelper"
	"github.com/netpilot/netpilot/pkg/scheduler"
)

func main() {
	command := &cli.Command{
		Name:                  "netpilot-worker",
		EnableShellCompletion: true,
		Usage:                 "Start workers to advance workflow executions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus type (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "catalog-path",
				Usage:   "Path to the catalog snapshot file",
				Value:   "",
				Sources: cli.EnvVars("CATALOG_PATH"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the distributed advance lock",
				Value:   "",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "poll-schedule",
				Usage:   "Cron cadence for the due-execution poll",
				Value:   "",
				Sources: cli.EnvVars("SCHEDULER_POLL_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("netpilot-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing Netpilot Worker")

			registry := cmd.NewProviderRegistry(logger)

			eventBus := cmd.NewEventBus(command.String("event-bus"), "netpilot-worker", logger)
			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			cat, err := catalog.LoadFile(command.String("catalog-path"))
			if err != nil {
				return err
			}

			tracer, err := otelhelper.NewTracer(ctx, "netpilot-worker")
			if err != nil {
				logger.WarnContext(ctx, "Tracing disabled", "error", err)
			}

			locker := cmd.NewLocker(command.String("redis-url"), logger)

			eng := engine.New(persistence, cat, registry, eventBus, locker, logger, tracer)
			sched := scheduler.NewScheduler(persistence, eventBus, logger, command.String("poll-schedule"))

			worker := NewWorkerManager(workerID, eng, eventBus, sched, logger)

			err = worker.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start worker", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
