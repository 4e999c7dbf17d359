package cli

import (
	"github.com/spf13/cobra"

	"patient-monitor/internal/app"
)

var (
	runConsole bool
	runPaused  bool
	runDisplay bool
	runFile    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the monitor session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := getApp()
		if runFile != "" {
			a.Config.Source.Kind = "file"
			a.Config.Source.Path = runFile
		}
		return a.Run(cmd.Context(), app.RunOptions{
			Console: runConsole,
			Paused:  runPaused,
			Display: runDisplay,
		})
	},
}

func init() {
	runCmd.Flags().BoolVar(&runConsole, "console", true, "Read control commands from stdin")
	runCmd.Flags().BoolVar(&runPaused, "paused", false, "Wait for a start command before playback")
	runCmd.Flags().BoolVar(&runDisplay, "display", true, "Print the vitals panel once per second")
	runCmd.Flags().StringVar(&runFile, "file", "", "Replay a CSV recording instead of the synthetic source")
}
