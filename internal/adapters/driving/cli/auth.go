package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var statusJSON bool

const runningServerWarning = "If the server is running, call POST /auth/logout or restart it: " +
	"it keeps its in-memory token and saves it again on the next refresh."

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the sign-in state",
	Long: `Show whether credentials are stored, for which account, and when the
access token expires. Token values are never printed.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Delete stored credentials",
	Long: `Delete the stored credentials. Safe to run when nothing is stored.

A running server keeps its in-memory token, and saves it again on its next
refresh, until it is restarted or POST /auth/logout is called.`,
	Args: cobra.NoArgs,
	RunE: runLogout,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print status as JSON")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logoutCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if tokenManager == nil {
		return errors.New("token manager not configured")
	}

	status := tokenManager.Status(cmd.Context())

	if statusJSON {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("encode status: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("State:    %s\n", status.State)
	if !status.Authenticated {
		cmd.Println("Not signed in. Start the server and visit /auth/login.")
		return nil
	}
	cmd.Printf("Account:  %s\n", status.Account)
	if status.ExpiresAt != nil {
		cmd.Printf("Expires:  %s\n", status.ExpiresAt.Local().Format(time.RFC1123))
	}
	if len(status.Scopes) > 0 {
		cmd.Printf("Scopes:   %s\n", strings.Join(status.Scopes, " "))
	}
	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	if tokenManager == nil {
		return errors.New("token manager not configured")
	}

	if err := tokenManager.Logout(cmd.Context()); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	cmd.Println("Logged out. Stored credentials removed.")
	cmd.Println(runningServerWarning)
	return nil
}
