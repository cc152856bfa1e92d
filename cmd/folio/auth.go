package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"folio/internal/kavita"
	"folio/internal/registry"
)

var authServerID string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate against a registered server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		reg, closer, err := openRegistry(ctx)
		if err != nil {
			return err
		}
		defer closer()

		client, err := resolveClient(reg, authServerID)
		if err != nil {
			return err
		}

		username, password, err := promptCredentials()
		if err != nil {
			return err
		}

		user, err := client.Login(ctx, username, password)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		fmt.Printf("Logged in as %s\n", user.Username)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored session for a registered server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		reg, closer, err := openRegistry(ctx)
		if err != nil {
			return err
		}
		defer closer()

		client, err := resolveClient(reg, authServerID)
		if err != nil {
			return err
		}

		client.Logout(ctx)
		fmt.Println("Logged out")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&authServerID, "server", "", "Server id (defaults to the primary server)")
	logoutCmd.Flags().StringVar(&authServerID, "server", "", "Server id (defaults to the primary server)")
}

// resolveClient returns the client for an explicit server id, or the primary
// client when no id is given.
func resolveClient(reg *registry.Registry, serverID string) (*kavita.Client, error) {
	if serverID != "" {
		return reg.Client(serverID)
	}
	return reg.PrimaryClient()
}
