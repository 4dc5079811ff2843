package main

import (
	"context"
	"errors"
	"log"
	"os"

	"github.com/joho/godotenv"

	"warden/internal/config"
	"warden/internal/daemonrun"
)

// wardend runs the daemon without the CLI. WARDEN_CONFIG selects the
// configuration file; otherwise the default search path applies.
func main() {
	_ = godotenv.Load()

	cfg, _, _, err := config.Load(os.Getenv("WARDEN_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{}); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("wardend: %v", err)
	}
}
