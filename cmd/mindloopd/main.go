package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"

	"mindloop/internal/config"
	"mindloop/internal/logging"
	"mindloop/internal/system"
)

func main() {
	if err := run(); err != nil {
		logging.Log.WithField("error", err).Fatal("mindloopd exited")
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	pterm.DefaultHeader.WithFullWidth().Println("mindloopd")
	pterm.Info.Printfln("data path: %s", cfg.DataPath)
	pterm.Info.Printfln("vector store backend: %s", cfg.VectorStore.Backend)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sc, err := system.New(ctx, cfg)
	if err != nil {
		return err
	}

	sc.Start(ctx)
	pterm.Success.Println("mindloopd started")

	<-ctx.Done()
	pterm.Info.Println("shutting down")
	sc.Stop()

	return nil
}
