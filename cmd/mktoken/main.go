package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/xelth-com/dmrelay/internal/auth"
	"github.com/xelth-com/dmrelay/internal/config"
)

// Development helper: mint a session token for a user id using the
// configured JWT_SECRET. Real tokens come from the credential service.
func main() {
	userID := flag.String("user", "", "user id to embed in the token")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "usage: mktoken -user <id> [-ttl 1h]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	token, err := auth.MintToken(*userID, cfg.JWTSecret, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mint: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
