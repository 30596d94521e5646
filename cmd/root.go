// Package cmd contains the taskora CLI commands.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "taskora",
	Short: "Taskora - AI-assisted todo backend",
	Long: `Taskora is a multi-user todo backend with a conversational AI agent.

Users manage tasks over a REST API or by chatting in natural language;
the agent translates requests into task operations through a fixed tool
catalog. Run "taskora serve" to start the HTTP server.`,
	SilenceUsage: true,
}

// Execute runs the root command. Called from main.
func Execute() error {
	return rootCmd.Execute()
}
