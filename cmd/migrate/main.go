// Command migrate runs schema operations for the backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"meeplehall/internal/config"
	"meeplehall/internal/database"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return fmt.Errorf("usage: go run ./cmd/migrate <auto|create-db|status|sizes>")
}

func run() error {
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch strings.ToLower(strings.TrimSpace(flag.Arg(0))) {
	case "create-db":
		created, err := database.CreateDatabase(ctx, cfg)
		if err != nil {
			return err
		}
		if created {
			log.Printf("created database %s", cfg.DBName)
		} else {
			log.Printf("database %s already exists", cfg.DBName)
		}
	case "auto":
		if _, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: true}); err != nil {
			return err
		}
		log.Println("automigrations applied")
	case "status":
		db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{})
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		status, err := database.SchemaStatus(db)
		if err != nil {
			return fmt.Errorf("schema status failed: %w", err)
		}
		missing := 0
		for _, t := range status {
			state := "ok"
			if !t.Exists {
				state = "missing"
				missing++
			}
			log.Printf("%-28s %s", t.Table, state)
		}
		log.Printf("env=%s driver=%s tables=%d missing=%d", cfg.Env, cfg.DBDriver, len(status), missing)
	case "sizes":
		sizes, err := database.TableSizes(ctx, cfg)
		if err != nil {
			return err
		}
		for _, t := range sizes {
			log.Printf("%-28s rows=%-8d bytes=%d", t.Table, t.Rows, t.TotalBytes)
		}
	default:
		return usage()
	}

	return nil
}
