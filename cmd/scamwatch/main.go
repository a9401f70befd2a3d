package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "scamwatch",
		Short: "Watches Telegram chats for scam messages and warns their members",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
		RunE:          runService,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config/scamwatch.yaml", "path to the YAML configuration file")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to Telegram and run the detection pipeline (default)",
		RunE:  runService,
	}

	var seedPath string
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the keyword and forbidden-name lists into the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, seedPath)
		},
	}
	seedCmd.Flags().StringVar(&seedPath, "file", "", "seed file, defaults to paths.keywords")

	root.AddCommand(runCmd, seedCmd)
	return root
}
