package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/shandysiswandi/jbcast/internal/pkg/goerror"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "jbcast",
	Short: "Bulk mail dispatch from spreadsheets",
	Long: `jbcast ingests recipient spreadsheets and sends one personalised email per row
through the owner's rate limited SMTP account.

Example:
  jbcast migrate up
  jbcast account --owner 7 --host smtp.example.com --username me@example.com
  jbcast upload recipients.xlsx --owner 7 --title "March invoices" --ingest
  jbcast dispatch 1234567890
  jbcast serve`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default from CONFIG_PATH)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(dispatchCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var ge *goerror.Error
	if errors.As(err, &ge) {
		return ge.ExitCode()
	}
	return 1
}
