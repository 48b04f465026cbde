package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/AltairaLabs/InterviewKit/runtime/logger"
	"github.com/AltairaLabs/InterviewKit/runtime/version"
)

var rootCmd = &cobra.Command{
	Use:           "interviewd",
	Short:         "Live AI interview server",
	Version:       version.GetVersion(),
	SilenceUsage:  true,
	SilenceErrors: false,
	Long: `interviewd runs spoken technical interviews in the candidate's browser.

Each WebSocket session captures the candidate's screen and microphone, asks
questions generated by a language model, transcribes the answers and, when
the interview ends, uploads the recording and saves the interview record.`,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		if cmd.Flags().Changed("verbose") {
			verbose, _ := cmd.Flags().GetBool("verbose")
			logger.SetVerbose(verbose)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.SetVersionTemplate(version.Get().String() + "\n")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
