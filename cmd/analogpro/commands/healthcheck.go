package commands

import (
	"github.com/spf13/cobra"

	"github.com/1v1expert/AnalogPro/internal/domain"
)

var (
	checkManufacturer int64
	checkOffset       int
	checkLimit        int
	checkActor        string
)

var healthCheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Resolve a manufacturer's products against every other trusted manufacturer",
	RunE:  runHealthCheck,
}

func init() {
	healthCheckCmd.Flags().Int64Var(&checkManufacturer, "manufacturer", 0, "Source manufacturer id")
	healthCheckCmd.Flags().IntVar(&checkOffset, "offset", 0, "Skip this many source products")
	healthCheckCmd.Flags().IntVar(&checkLimit, "limit", 0, "Check at most this many source products (0 = all)")
	healthCheckCmd.Flags().StringVar(&checkActor, "actor", "healthcheck", "Recorded as the cache entry author")
	_ = healthCheckCmd.MarkFlagRequired("manufacturer")
}

func runHealthCheck(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	report, err := a.checks.Run(cmd.Context(), domain.HealthCheckRequest{
		ManufacturerID: checkManufacturer,
		Offset:         checkOffset,
		Limit:          checkLimit,
		Actor:          checkActor,
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), report)
}
