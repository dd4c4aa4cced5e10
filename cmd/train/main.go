// Command train fits one model against the configured store and prints the
// new version and its validation accuracy.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	service "github.com/okian/puckcast/internal/app"
	"github.com/okian/puckcast/internal/config"
	"github.com/okian/puckcast/pkg/logger"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	seasonsFlag := fs.String("seasons", "", "comma separated season ids, e.g. 20222023,20232024")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if err := logger.Init(); err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logging:", err)
		return 1
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		return 1
	}
	_ = logger.SetLevelString(cfg.LogLevel)
	log := logger.Named("train")

	seasons := cfg.Seasons()
	if *seasonsFlag != "" {
		if seasons, err = config.ParseSeasons(*seasonsFlag); err != nil {
			fmt.Fprintln(os.Stderr, "invalid -seasons:", err)
			return 2
		}
	}

	svc, cleanup, err := service.FromConfig(ctx, cfg)
	if err != nil {
		log.Error(ctx, "failed to build service", logger.Error(err))
		return 1
	}
	defer cleanup()

	m, err := svc.Train(ctx, seasons)
	if err != nil {
		log.Error(ctx, "training failed", logger.Any("seasons", seasons), logger.Error(err))
		return 1
	}
	fmt.Printf("trained %s version %s on %d rows, accuracy %.4f\nartifact: %s\n",
		m.Name, m.Version, m.TrainedRows, m.Accuracy, m.ArtifactPath)
	return 0
}
