package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nuecms/storage-provider/storage"
)

// checkCmd 后端连通性检查命令
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Test connectivity of configured storage backends",
	Long: `Test connectivity of every configured storage backend in parallel.

Example:
  # Check all configured backends
  storage-provider check

  # Check with a custom timeout
  storage-provider check --timeout 30s`,
	Run: func(cmd *cobra.Command, args []string) {
		timeout, _ := cmd.Flags().GetDuration("timeout")
		providers, _ := cmd.Flags().GetStringSlice("provider")

		if err := runCheck(timeout, providers); err != nil {
			log.Fatalf("Check failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().Duration("timeout", 15*time.Second, "Total timeout for all connectivity probes")
	checkCmd.Flags().StringSliceP("provider", "p", nil, "Only check these provider instances (default: all)")
}

// runCheck 并发探测已配置后端
func runCheck(timeout time.Duration, providers []string) error {
	driver, err := newDriver()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	names := driver.ProviderNames()
	if len(providers) > 0 {
		names = providers
	}
	results := make([]*storage.ConnectionResult, len(names))

	g, ctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			provider, err := driver.Provider(name)
			if err != nil {
				return err
			}
			results[i] = provider.TestConnection(ctx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	defaultName := driver.DefaultProviderName()
	failed := 0
	for i, name := range names {
		marker := " "
		if name == defaultName {
			marker = "*"
		}
		if results[i].Success {
			fmt.Printf("%s %-10s ok      %s\n", marker, name, results[i].Message)
		} else {
			fmt.Printf("%s %-10s failed  %s\n", marker, name, results[i].Message)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d storage backends unreachable", failed, len(names))
	}
	return nil
}
