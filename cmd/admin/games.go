package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reindexGamesCmd = &cobra.Command{
	Use:   "reindex-games",
	Short: "Push every game to the Elasticsearch index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		games, err := a.gameService(cmd.Context())
		if err != nil {
			return err
		}
		n, err := games.Reindex(cmd.Context())
		if err != nil {
			return err
		}
		if output == "json" {
			return printJSON(map[string]int{"indexed": n})
		}
		fmt.Printf("Indexed %d games\n", n)
		return nil
	},
}
