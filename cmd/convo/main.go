package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	rosterPath string
	rootCmd    = &cobra.Command{
		Use:   "convo",
		Short: "convo - multi-agent discussions from the terminal",
		Long: `convo lets a roster of agents with different personalities discuss a topic
in turns, summarizes the discussion and stores the transcript locally.`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&rosterPath, "roster", "", "agent roster file (default AGENT_CONFIG_FILE)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
