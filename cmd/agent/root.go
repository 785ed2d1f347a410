package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "agent",
	Short: "A tool-using conversational agent",
	Long: `agent chats with a language model that can call built-in tools.
The conversation is persisted between runs; run without a subcommand to chat.`,
	SilenceUsage: true,
	RunE:         runChat,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat (the default command)",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Path to a YAML config file (default $AGT_CONFIG or ./toolchat.yaml)")
	pf.String("provider", "", "Model provider: anthropic or gemini")
	pf.String("model", "", "Model name (provider default when empty)")
	pf.String("store", "", "Conversation store: memory, file, bolt or redis")
	pf.String("store-path", "", "File or database path for the file and bolt stores")
	pf.String("log-level", "", "Log level: debug, info, warn or error")

	for _, c := range []*cobra.Command{rootCmd, chatCmd} {
		c.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address while chatting")
	}
	rootCmd.AddCommand(chatCmd)
}
