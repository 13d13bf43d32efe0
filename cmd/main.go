package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// @title Follow-Up Bot API
// @version 1.0
// @description Automated WhatsApp follow-ups for real estate contacts
// @host localhost:3001
// @BasePath /api/v1
func main() {
	rootCmd := &cobra.Command{
		Use:   "followup-bot",
		Short: "Automated WhatsApp follow-ups",
		Long:  "Runs the follow-up automation service and offers maintenance commands over the same contact store",
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newContactsCmd())
	rootCmd.AddCommand(newAckCmd())
	rootCmd.AddCommand(newAutopilotCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
