package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	auditLines int
	auditJSON  bool
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent audit log entries",
	Args:  cobra.NoArgs,
	RunE:  runAudit,
}

func init() {
	auditCmd.Flags().IntVarP(&auditLines, "lines", "n", 20, "number of entries to show")
	auditCmd.Flags().BoolVar(&auditJSON, "json", false, "print raw JSON lines")
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, _ []string) error {
	if auditReader == nil {
		return errors.New("audit log not configured")
	}
	if auditLines <= 0 {
		return fmt.Errorf("invalid --lines %d: must be positive", auditLines)
	}

	entries, err := auditReader.Tail(auditLines)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		cmd.Println("No audit entries.")
		return nil
	}

	for _, e := range entries {
		if auditJSON {
			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("encode entry: %w", err)
			}
			cmd.Println(string(data))
			continue
		}

		result := "ok"
		if !e.Success {
			result = "FAILED"
		}
		line := fmt.Sprintf("%s  %-22s %-6s %s",
			e.Timestamp.Local().Format(time.DateTime), e.Operation, result, e.Actor)
		if d := formatDetail(e.Detail); d != "" {
			line += "  " + d
		}
		cmd.Println(line)
	}
	return nil
}

// formatDetail renders detail as sorted key=value pairs.
func formatDetail(detail map[string]any) string {
	if len(detail) == 0 {
		return ""
	}
	keys := make([]string, 0, len(detail))
	for k := range detail {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, detail[k]))
	}
	return strings.Join(parts, " ")
}
