package cli

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	simulatePrimary  float64
	simulateFallback float64
	simulateVolume   int64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一次价格偏差并触发告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulatePrimary <= 0 || simulateFallback <= 0 {
			return errors.New("--primary 与 --fallback 必须大于 0")
		}
		if simulateVolume < 0 {
			return errors.New("--volume 不能为负")
		}

		primary := decimal.NewFromFloat(simulatePrimary).Shift(18).BigInt()
		fallback := decimal.NewFromFloat(simulateFallback).Shift(18).BigInt()
		volume := big.NewInt(simulateVolume)
		return getApp().SimulateAlert(cmd.Context(), primary, fallback, volume)
	},
}

func init() {
	simulateCmd.Flags().Float64Var(&simulatePrimary, "primary", 0, "主源价格（人类可读单位）")
	simulateCmd.Flags().Float64Var(&simulateFallback, "fallback", 0, "备源价格（人类可读单位）")
	simulateCmd.Flags().Int64Var(&simulateVolume, "volume", 0, "成交量指标")
}
