// Command token issues a bearer token for the Lexora API using the
// configured JWT secret.
package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/seanblong/lexora/internal/auth"
	"github.com/seanblong/lexora/internal/config"
)

func main() {
	fs := pflag.NewFlagSet("lexora-token", pflag.ExitOnError)
	subject := fs.String("subject", "", "token subject (required)")
	name := fs.String("name", "", "display name stored in the token")

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	fs.Usage = cfg.Usage

	// Tokens can be minted before enforcement is switched on.
	authn, err := auth.New(cfg.Auth.JwtSecret, cfg.Auth.TokenTTL, false)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize auth")
	}
	token, err := authn.Issue(*subject, *name)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to issue token")
	}
	fmt.Println(token)
}
