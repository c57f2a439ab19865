package main

import (
	"flag"
	"fmt"
	"os"

	"tracker/internal/logger"
	"tracker/internal/server"
	db "tracker/repository/db"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	flags := server.RegisterFlags(flag.CommandLine)
	flag.Parse()

	cfg, warnings := server.ReadConfig(flags)
	log, err := logger.New(cfg.Env, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	for _, w := range warnings {
		log.Warn().Msg(w)
	}

	if err := db.Migration(cfg.DBStr, cfg.MigratePath); err != nil {
		log.Fatal().Err(err).Str("path", cfg.MigratePath).Msg("migration failed")
	}

	version, dirty, err := db.MigrationVersion(cfg.DBStr, cfg.MigratePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read schema version")
	}
	log.Info().
		Uint("version", version).
		Bool("dirty", dirty).
		Msg("schema is up to date")
}
