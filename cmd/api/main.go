// Command api serves the FinWise identity HTTP and gRPC endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/NT912/Finwise---final-sub002/internal/infra/app"
	"github.com/NT912/Finwise---final-sub002/internal/infra/config"
)

func main() {
	envFile := flag.String("env-file", ".env", "dotenv file merged into the environment before config is read")
	flag.Parse()

	if err := run(*envFile); err != nil {
		log.Printf("finwise identity stopped: %v", err)
		os.Exit(1)
	}
}

func run(envFile string) error {
	// A missing file is normal outside local development.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	return application.Run(ctx)
}
