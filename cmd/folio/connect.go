package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"folio/internal/kavita"
	"folio/internal/models"
)

var (
	connectName string
	connectURL  string
	connectType string
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Register a media server and authenticate against it",
	Long:  `Probes the server's health endpoint before committing the registration, then logs in and stores the session credentials.`,
	RunE:  runConnect,
}

func init() {
	connectCmd.Flags().StringVar(&connectName, "name", "", "Display name for the server")
	connectCmd.Flags().StringVar(&connectURL, "url", "", "Server base URL")
	connectCmd.Flags().StringVar(&connectType, "type", string(models.ServerTypeKavita), "Server protocol (kavita or opds)")
	connectCmd.MarkFlagRequired("name")
	connectCmd.MarkFlagRequired("url")
}

func runConnect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Try before commit: probe with a throwaway client so nothing is
	// registered for an unreachable server.
	probe, err := kavita.NewClient(connectURL, kavita.WithLogger(logger))
	if err != nil {
		return err
	}
	if !probe.TestConnection(ctx) {
		return fmt.Errorf("server at %s is not reachable", connectURL)
	}
	fmt.Printf("Server at %s is reachable\n", probe.BaseURL())

	reg, closer, err := openRegistry(ctx)
	if err != nil {
		return err
	}
	defer closer()

	server, err := reg.AddServer(ctx, models.Server{
		Name: connectName,
		URL:  connectURL,
		Type: models.ServerType(connectType),
	})
	if err != nil {
		return err
	}

	client, err := reg.Client(server.ID)
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

	fmt.Printf("Connected to %s as %s (server id: %s)\n", server.Name, user.Username, server.ID)
	return nil
}

// promptCredentials reads a username from stdin and a password with echo
// disabled.
func promptCredentials() (string, string, error) {
	fmt.Print("Username: ")
	reader := bufio.NewReader(os.Stdin)
	username, err := reader.ReadString('\n')
	if err != nil {
		return "", "", fmt.Errorf("failed to read username: %w", err)
	}
	username = strings.TrimSpace(username)

	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", "", fmt.Errorf("failed to read password: %w", err)
	}

	return username, string(password), nil
}
