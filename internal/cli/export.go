package cli

import (
	"github.com/spf13/cobra"

	"patient-monitor/internal/app"
)

var (
	exportFrom      float64
	exportTo        float64
	exportPNGPath   string
	exportCSVPath   string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export recorded vitals as CSV and/or PNG trend chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			PNGPath:   exportPNGPath,
			CSVPath:   exportCSVPath,
			MaxPoints: exportMaxPoints,
		}

		if cmd.Flags().Changed("from") {
			opts.From = &exportFrom
		}
		if cmd.Flags().Changed("to") {
			opts.To = &exportTo
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().Float64Var(&exportFrom, "from", 0, "Start of the window in simulated seconds (inclusive)")
	exportCmd.Flags().Float64Var(&exportTo, "to", 0, "End of the window in simulated seconds (exclusive)")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum data points to export (defaults to config)")
}
