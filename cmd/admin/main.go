// Command admin provides account and catalog maintenance for Meeple Hall operators.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"meeplehall/internal/config"
	"meeplehall/internal/database"
	"meeplehall/internal/repository"
	"meeplehall/internal/search"
	"meeplehall/internal/service"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var output = "text"

// app holds the dependencies shared by every command. It is built lazily so
// that --help works without a database.
type app struct {
	cfg   *config.Config
	db    *gorm.DB
	users repository.UserRepository
	svc   *service.UserService
}

var deps *app

func loadApp() (*app, error) {
	if deps != nil {
		return deps, nil
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	users := repository.NewUserRepository(db)
	deps = &app{
		cfg:   cfg,
		db:    db,
		users: users,
		svc: service.NewUserService(users, repository.NewFollowRepository(db),
			repository.NewPostRepository(db), repository.NewGameRepository(db)),
	}
	return deps, nil
}

func (a *app) gameService(ctx context.Context) (*service.GameService, error) {
	if a.cfg.ElasticsearchURL == "" {
		return nil, fmt.Errorf("ELASTICSEARCH_URL is not set")
	}
	client, err := search.NewClient(a.cfg.ElasticsearchURL)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}
	if err := client.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("ensure games index: %w", err)
	}
	return service.NewGameService(repository.NewGameRepository(a.db), client), nil
}

var rootCmd = &cobra.Command{
	Use:   "admin",
	Short: "Meeple Hall admin - manage accounts and the game catalog",
	Long: `Operator tooling that talks to the database directly.
Users can be given by numeric ID or by username.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&output, "output", output, "Output format: text or json")

	rootCmd.AddCommand(promoteCmd, demoteCmd, listAdminsCmd)
	rootCmd.AddCommand(banCmd, unbanCmd, restoreCmd)
	rootCmd.AddCommand(reindexGamesCmd)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
