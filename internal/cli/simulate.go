package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"patient-monitor/internal/app"
	"patient-monitor/internal/domain"
)

var (
	simulateParam  string
	simulateValue  float64
	simulateRhythm string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alarm",
	Short: "Evaluate one abnormal reading and dispatch its alarm notification",
	RunE: func(cmd *cobra.Command, args []string) error {
		param, err := domain.ParseParameter(simulateParam)
		if err != nil {
			return err
		}
		class, err := domain.ParseRhythm(simulateRhythm)
		if err != nil {
			return err
		}

		trs, err := getApp().SimulateAlarm(cmd.Context(), app.SimulateOptions{
			Param:  param,
			Value:  simulateValue,
			Rhythm: class,
		})
		if err != nil {
			return err
		}
		for _, tr := range trs {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%g)\n", tr.Param, tr.Message, tr.Value)
		}
		return nil
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateParam, "param", "hr", "Parameter: ecg, hr, spo2, resp, temp, bp_sys, bp_dia")
	simulateCmd.Flags().Float64Var(&simulateValue, "value", 130, "Reading value (heart rate for ecg)")
	simulateCmd.Flags().StringVar(&simulateRhythm, "rhythm", "tachycardia", "Rhythm used when --param is ecg")
}
