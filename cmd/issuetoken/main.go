// Command issuetoken mints a development bearer token for a user id, signed
// with the server's JWT_SECRET.
//
//	go run ./cmd/issuetoken -uid alice -ttl 24h
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"crowdradar/internal/auth"
	"crowdradar/internal/config"
)

func main() {
	uid := flag.String("uid", "", "user id to put in the token subject")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *uid == "" {
		fmt.Fprintln(os.Stderr, "usage: issuetoken -uid <user id> [-ttl 24h]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	issuer, err := auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	if err != nil {
		log.Fatalf("Cannot sign tokens: %v", err)
	}
	token, err := issuer.Issue(*uid, *ttl, time.Now())
	if err != nil {
		log.Fatalf("Issue token: %v", err)
	}
	fmt.Println(token)
}
