package cli

import (
	"github.com/spf13/cobra"

	"patient-monitor/internal/app"
)

var (
	analyzeFile   string
	analyzeWindow float64
	analyzePNG    string
	analyzeStrip  float64
	analyzeMethod string
	analyzePrep   bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Detect beats and classify the rhythm of a CSV recording",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Analyze(cmd.Context(), app.AnalyzeOptions{
			Path:         analyzeFile,
			Window:       analyzeWindow,
			PNGPath:      analyzePNG,
			StripSeconds: analyzeStrip,
			Method:       analyzeMethod,
			Preprocess:   analyzePrep,
		}, cmd.OutOrStdout())
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFile, "file", "", "CSV recording (time, voltage[, pleth, resp])")
	analyzeCmd.Flags().Float64Var(&analyzeWindow, "window", 0, "Analysis window in seconds (defaults to config)")
	analyzeCmd.Flags().StringVar(&analyzePNG, "png", "", "Path to write the ECG strip with beat markers")
	analyzeCmd.Flags().Float64Var(&analyzeStrip, "strip-seconds", 10, "Seconds of ECG to render; 0 renders the whole file")
	analyzeCmd.Flags().StringVar(&analyzeMethod, "method", app.MethodPeak, "Beat detector: peak or pantompkins")
	analyzeCmd.Flags().BoolVar(&analyzePrep, "preprocess", false, "Remove baseline wander, noise and mains hum before detection")
	_ = analyzeCmd.MarkFlagRequired("file")
}
