// Command issue-token signs a bearer token for a subject with the configured
// secret. It stands in for the login flow when exercising the API locally.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/NT912/Finwise---final-sub002/internal/infra/app"
	"github.com/NT912/Finwise---final-sub002/internal/infra/config"
)

func main() {
	subject := flag.String("subject", "", "account id to issue the token for")
	flag.Parse()

	if *subject == "" {
		fmt.Fprintln(os.Stderr, "usage: issue-token -subject <account-id>")
		os.Exit(2)
	}

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Auth.Secret == "" {
		log.Fatal("auth.secret must be set; a token signed with an ephemeral secret is useless to the API")
	}

	codec, err := app.NewTokenCodec(cfg, zap.NewNop())
	if err != nil {
		log.Fatalf("failed to init token codec: %v", err)
	}

	token, err := codec.Issue(*subject)
	if err != nil {
		log.Fatalf("failed to issue token: %v", err)
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "issued for %s, valid for %s\n", *subject, codec.TTL())
}
