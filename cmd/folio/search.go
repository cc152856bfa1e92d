package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search series across all registered servers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		reg, closer, err := openRegistry(ctx)
		if err != nil {
			return err
		}
		defer closer()

		matches := reg.SearchSeries(ctx, args[0])
		if len(matches) == 0 {
			fmt.Println("No matches found.")
			return nil
		}

		for _, match := range matches {
			fmt.Printf("%-40s %s / %s (series %d)\n", match.Series.Name, match.ServerName, match.LibraryName, match.Series.Id)
		}
		return nil
	},
}
