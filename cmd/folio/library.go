package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	libServerID    string
	seriesPage     int
	seriesPageSize int
)

var librariesCmd = &cobra.Command{
	Use:   "libraries",
	Short: "List the libraries on a server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		reg, closer, err := openRegistry(ctx)
		if err != nil {
			return err
		}
		defer closer()

		client, err := resolveClient(reg, libServerID)
		if err != nil {
			return err
		}

		libraries, err := client.Libraries(ctx)
		if err != nil {
			return err
		}

		for _, library := range libraries {
			fmt.Printf("%4d  %s\n", library.Id, library.Name)
		}
		return nil
	},
}

var seriesCmd = &cobra.Command{
	Use:   "series <library-id>",
	Short: "List the series in a library with volume and chapter counts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		libraryID, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid library id %q", args[0])
		}

		reg, closer, err := openRegistry(ctx)
		if err != nil {
			return err
		}
		defer closer()

		client, err := resolveClient(reg, libServerID)
		if err != nil {
			return err
		}

		series, err := client.Series(ctx, libraryID, seriesPage, seriesPageSize)
		if err != nil {
			return err
		}

		for _, s := range series {
			fmt.Printf("%4d  %-40s volumes=%d chapters=%d pages=%d\n", s.Id, s.Name, s.VolumeCount, s.ChapterCount, s.Pages)
		}
		return nil
	},
}

func init() {
	librariesCmd.Flags().StringVar(&libServerID, "server", "", "Server id (defaults to the primary server)")
	seriesCmd.Flags().StringVar(&libServerID, "server", "", "Server id (defaults to the primary server)")
	seriesCmd.Flags().IntVar(&seriesPage, "page", 0, "Page number")
	seriesCmd.Flags().IntVar(&seriesPageSize, "page-size", 50, "Page size")
}
