package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"patient-monitor/internal/app"
	"patient-monitor/internal/domain"
)

var (
	showLimit  int
	showParam  string
	showAlarms bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the latest vitals snapshots and alarm transitions of the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return errors.New("--limit must be greater than zero")
		}
		opts := app.ShowOptions{Limit: showLimit, AlarmsOnly: showAlarms}
		if showParam != "" {
			param, err := domain.ParseParameter(showParam)
			if err != nil {
				return err
			}
			opts.Param = param
			opts.AlarmsOnly = true
		}
		return getApp().Show(cmd.Context(), opts, cmd.OutOrStdout())
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Rows per table")
	showCmd.Flags().StringVar(&showParam, "param", "", "Only alarm events of this parameter (implies --alarms)")
	showCmd.Flags().BoolVar(&showAlarms, "alarms", false, "Skip the snapshot table")
}
