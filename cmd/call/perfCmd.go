package call

import (
	"context"
	"encoding/csv"
	"fmt"
	"github.com/ValentinKolb/dSock/cmd/util"
	"github.com/ValentinKolb/dSock/rpc/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for dSock servers",
		Long:    "Measures the request/response round trip against an object server in echo mode (see dsock serve)",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfSkip             = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. ping,large)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the large test should be (in KB)"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfNumThreads = viper.GetInt("threads")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

// benchmark is a single named request the perf test sends in parallel
type benchmark struct {
	name  string
	value func() any
}

func runPerf(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for dSock servers")

	// Print configuration
	config := rpcClient.Config()
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(config.String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	largeValue := strings.Repeat("x", perfLargeValueSizeKB*1024)
	benchmarks := []benchmark{
		{name: "ping", value: func() any { return "ping" }},
		{name: "echo", value: func() any { return "echo" }},
		{name: "large", value: func() any { return largeValue }},
	}

	results := make(map[string]testing.BenchmarkResult)
	for _, bm := range benchmarks {
		result := testing.Benchmark(func(b *testing.B) {
			if shouldSkip(bm.name) {
				return
			}

			b.SetParallelism(perfNumThreads)
			b.ResetTimer()

			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					if _, err := client.RequestAs[any](context.Background(), rpcClient, bm.value()); err != nil {
						log.Printf("(%s) - request failed: %v\n", bm.name, err)
					}
				}
			})
		})

		results[bm.name] = result
		printResult(bm.name, result)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"test", "ns_per_op", "ops_per_sec", "threads", "serializer", "transport", "keepalive"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for name, result := range results {
		if result.NsPerOp() == 0 {
			continue
		}
		nsPerOp := math.Max(float64(result.NsPerOp()), 1)
		row := []string{
			name,
			strconv.FormatInt(result.NsPerOp(), 10),
			strconv.FormatFloat(1.0/(nsPerOp/1e9), 'f', 0, 64),
			strconv.Itoa(perfNumThreads),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.FormatBool(rpcClient.Config().SendKeepAlives),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	return nil
}
