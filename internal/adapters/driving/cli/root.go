package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/prdeepak/ms365-access/internal/core/domain"
	"github.com/prdeepak/ms365-access/internal/core/ports/driving"
	"github.com/prdeepak/ms365-access/internal/logger"
)

// AuditReader returns recent audit entries, oldest first.
type AuditReader interface {
	Tail(n int) ([]domain.AuditEntry, error)
}

// Server is the HTTP surface started by the serve command.
type Server interface {
	Start() error
	Shutdown(ctx context.Context) error
}

var (
	// Version is set by goreleaser ldflags.
	version = "dev"

	// Verbose enables debug logging.
	verbose bool

	// Services holds injected service implementations for CLI commands.
	tokenManager driving.TokenManager
	auditReader  AuditReader
	httpServer   Server
	serverErr    error
	loginURL     string
)

// Services holds configuration for CLI commands.
type Services struct {
	Tokens driving.TokenManager
	Audit  AuditReader
	Server Server
	// ServerErr explains why Server is nil, e.g. missing app registration settings.
	ServerErr error
	// LoginURL is printed when serve starts without credentials.
	LoginURL string
}

// SetServices injects service implementations for CLI commands.
func SetServices(s *Services) {
	if s == nil {
		return
	}
	tokenManager = s.Tokens
	auditReader = s.Audit
	httpServer = s.Server
	serverErr = s.ServerErr
	loginURL = s.LoginURL
}

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "ms365gw",
	Short: "Local gateway to Microsoft 365 for a single user",
	Long: `ms365gw signs one user in to Microsoft 365, keeps their delegated tokens
encrypted on disk, and serves mail, calendar, OneDrive and SharePoint over a
simplified local REST API.

Every login, refresh, logout and destructive call is written to an audit log.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string for the CLI.
func SetVersion(v string) {
	version = v
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose debug output")

	// Use PersistentPreRunE to set verbose mode before any command executes
	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		return nil
	}
}
