package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"folio/internal/models"
)

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "Manage registered servers",
	RunE:  runServersList,
}

var serversRemoveCmd = &cobra.Command{
	Use:   "remove <server-id>",
	Short: "Remove a registered server and its stored credentials",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		reg, closer, err := openRegistry(ctx)
		if err != nil {
			return err
		}
		defer closer()

		if err := reg.RemoveServer(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("Removed server %s\n", args[0])
		return nil
	},
}

var serversSetPrimaryCmd = &cobra.Command{
	Use:   "set-primary <server-id>",
	Short: "Designate the primary server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		reg, closer, err := openRegistry(ctx)
		if err != nil {
			return err
		}
		defer closer()

		if err := reg.SetPrimary(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("Primary server is now %s\n", args[0])
		return nil
	},
}

var (
	renameName string
	renameURL  string
)

var serversUpdateCmd = &cobra.Command{
	Use:   "update <server-id>",
	Short: "Update a server's settings (rebuilds its client on next use)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		reg, closer, err := openRegistry(ctx)
		if err != nil {
			return err
		}
		defer closer()

		patch := models.ServerPatch{}
		if renameName != "" {
			patch.Name = &renameName
		}
		if renameURL != "" {
			patch.URL = &renameURL
		}

		if err := reg.UpdateServer(ctx, args[0], patch); err != nil {
			return err
		}
		fmt.Printf("Updated server %s\n", args[0])
		return nil
	},
}

func init() {
	serversUpdateCmd.Flags().StringVar(&renameName, "name", "", "New display name")
	serversUpdateCmd.Flags().StringVar(&renameURL, "url", "", "New base URL")

	serversCmd.AddCommand(serversRemoveCmd)
	serversCmd.AddCommand(serversSetPrimaryCmd)
	serversCmd.AddCommand(serversUpdateCmd)
}

func runServersList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	reg, closer, err := openRegistry(ctx)
	if err != nil {
		return err
	}
	defer closer()

	servers := reg.Servers()
	if len(servers) == 0 {
		fmt.Println("No servers registered. Use 'folio connect' to add one.")
		return nil
	}

	primaryID := reg.PrimaryID()
	for _, server := range servers {
		marker := " "
		if server.ID == primaryID {
			marker = "*"
		}
		fmt.Printf("%s %s  %-20s %-10s %s\n", marker, server.ID, server.Name, server.Type, server.URL)
	}
	return nil
}
