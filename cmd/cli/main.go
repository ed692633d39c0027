package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/dvoronkov/echofeed/internal/buildinfo"
	"github.com/dvoronkov/echofeed/internal/client/cli"
	"github.com/dvoronkov/echofeed/internal/client/config"
	"github.com/dvoronkov/echofeed/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)
}
