package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/warranty-orders/internal/store"
	"github.com/ginjaninja78/warranty-orders/internal/types"
)

var (
	expectedCount int
	atLeast       bool
	sampleSize    int
)

// verifyCmd compares the stored order count with an expected count.
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Compare the stored order count with an expected count",
	Long: `Verify counts the rows of service_orders and compares the count with
--expected. With --at-least the store may hold more orders than expected.
--sample prints the most recent stored orders.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		loader, closeStore, err := openLoader(ctx, appConfig, logger, false)
		if err != nil {
			return err
		}
		defer closeStore()
		if loader == nil {
			return errNoStore
		}

		v, err := loader.Verify(ctx, &store.LoadResult{Distinct: expectedCount, Cleared: !atLeast})
		if err != nil {
			return err
		}

		fmt.Printf("Expected:   %d\n", v.ExpectedCount)
		fmt.Printf("Actual:     %d\n", v.ActualCount)
		fmt.Printf("Difference: %+d\n", v.Difference)

		if sampleSize > 0 {
			orders, err := loader.Sample(ctx, sampleSize)
			if err != nil {
				return err
			}
			fmt.Println("\nSample:")
			for _, o := range orders {
				fmt.Printf("  %-12s %s %-3s %-20s grand %s verified=%t\n",
					o.OrderNumber, o.DateString(), o.Status,
					types.StringOrEmpty(o.EngineManufacturer),
					o.GrandTotal.StringFixed(2), o.CalculationVerified)
			}
		}

		if !v.Match {
			return fmt.Errorf("stored order count %d does not match expected %d", v.ActualCount, v.ExpectedCount)
		}
		fmt.Println("\nCounts match.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().IntVar(&expectedCount, "expected", 0, "Expected number of stored orders")
	verifyCmd.Flags().BoolVar(&atLeast, "at-least", false, "Accept a store holding more orders than expected")
	verifyCmd.Flags().IntVar(&sampleSize, "sample", 0, "Print this many stored orders")
	_ = verifyCmd.MarkFlagRequired("expected")
}
