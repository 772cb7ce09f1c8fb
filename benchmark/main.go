// Package main provides a performance benchmarking tool for the cpapinsight CLI.
// It generates session exports of increasing length, measures execution times
// of the analysis commands against the export file and against the SQLite store,
// treating the first successful store run as cold and averaging the rest as warm,
// and writes CSV output for performance analysis and documentation.
//
// Prerequisites:
// - cpapinsight binary installed and available in PATH
//
// Usage: go run benchmark/main.go [work-dir]
//
//	work-dir: Directory for the generated exports and SQLite databases
package main

import (
	"encoding/csv"
	"fmt"
	"math/rand/v2"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// BenchmarkResult holds the result of a benchmark run (file average, cold store run and average of warm store runs).
type BenchmarkResult struct {
	Nights   int
	Command  string
	FileTime string
	ColdTime string
	WarmTime string
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	WorkDir   string
	Timeout   time.Duration
	FileRuns  int
	StoreRuns int
	Sizes     []int
	Commands  map[string][]string
	Reference time.Time
}

func main() {
	if len(os.Args) != 2 {
		fmt.Printf("Usage: %s [work-dir]\n", os.Args[0])
		os.Exit(1)
	}

	config := BenchmarkConfig{
		WorkDir:   os.Args[1],
		Timeout:   2 * time.Minute,
		FileRuns:  3,
		StoreRuns: 4,
		Sizes:     []int{90, 365, 1825, 3650},
		Commands: map[string][]string{
			"report":     {"report"},
			"compare":    {"compare", "--base-ref", "90 days ago"},
			"timeseries": {"timeseries", "--interval", "30", "--points", "12"},
		},
		Reference: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
	}

	if err := checkPrerequisites(config); err != nil {
		fmt.Printf("Prerequisites check failed: %v\n", err)
		os.Exit(1)
	}

	results := runBenchmarks(config)

	if err := saveResults(results); err != nil {
		fmt.Printf("Failed to save results: %v\n", err)
		os.Exit(1)
	}

	printSummary(results)
}

// checkPrerequisites verifies that the binary exists and the work dir is writable
func checkPrerequisites(config BenchmarkConfig) error {
	if _, err := exec.LookPath("cpapinsight"); err != nil {
		return fmt.Errorf("cpapinsight binary not found in PATH")
	}
	return os.MkdirAll(config.WorkDir, 0o755)
}

// writeExport generates a CSV export of nights ending at the reference date
func writeExport(path string, nights int, ref time.Time) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	rng := rand.New(rand.NewPCG(uint64(nights), 42))
	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"date", "duration_minutes", "ahi", "mask_leak_avg", "mask_leak_95", "pressure_avg", "obstructive_apneas", "central_apneas", "hypopneas"}); err != nil {
		return err
	}
	for daysAgo := nights - 1; daysAgo >= 0; daysAgo-- {
		f := func(base, spread float64) string {
			return strconv.FormatFloat(base+rng.Float64()*spread, 'f', 1, 64)
		}
		row := []string{
			ref.AddDate(0, 0, -daysAgo).Format("2006-01-02"),
			f(240, 300), f(1, 8), f(5, 25), f(15, 30), f(8, 4), f(0, 10), f(0, 3), f(0, 10),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// runBenchmarks executes all benchmark tests across configured export sizes
func runBenchmarks(config BenchmarkConfig) []BenchmarkResult {
	var results []BenchmarkResult

	fmt.Printf("Starting benchmark: %d sizes, %v timeout, file: %d runs, store: %d runs\n",
		len(config.Sizes), config.Timeout, config.FileRuns, config.StoreRuns)

	for _, nights := range config.Sizes {
		fmt.Printf("Benchmarking %d nights\n", nights)

		exportPath := filepath.Join(config.WorkDir, fmt.Sprintf("sessions_%d.csv", nights))
		if err := writeExport(exportPath, nights, config.Reference); err != nil {
			fmt.Printf("  failed to write export: %v\n", err)
			continue
		}

		for _, command := range []string{"report", "compare", "timeseries"} {
			dbPath := filepath.Join(config.WorkDir, fmt.Sprintf("sessions_%d_%s.db", nights, command))
			_ = os.Remove(dbPath)
			results = append(results, runBenchmarkSuite(config, nights, command, exportPath, dbPath))
		}
	}

	return results
}

// runBenchmarkSuite runs both file and store benchmarks for a command
func runBenchmarkSuite(config BenchmarkConfig, nights int, command, exportPath, dbPath string) BenchmarkResult {
	fmt.Printf("Running %s on %d nights\n", command, nights)

	average := func(times []float64) string {
		if len(times) == 0 {
			return "TIMEOUT"
		}
		var sum float64
		for _, t := range times {
			sum += t
		}
		return fmt.Sprintf("%.3fs", sum/float64(len(times)))
	}

	// Phase 1: analyze the export file directly
	fileArgs := append([]string{"--input", exportPath, "--store-backend", "none"}, config.Commands[command]...)
	fmt.Printf("  File phase (%d runs)\n", config.FileRuns)
	_, fileTimes := runBenchmark(config, fileArgs, config.FileRuns)
	fileAvg := average(fileTimes)

	// Phase 2: import once, then analyze from the store
	storeFlags := []string{"--store-backend", "sqlite", "--store-db-connect", dbPath}
	importCmd := exec.Command("cpapinsight", append([]string{"import", exportPath}, storeFlags...)...)
	if output, err := importCmd.CombinedOutput(); err != nil {
		fmt.Printf("  Warning: import failed: %v\nOutput: %s\n", err, string(output))
	}
	fmt.Printf("  Store phase (%d runs)\n", config.StoreRuns)
	coldTime, warmTimes := runBenchmark(config, append(storeFlags, config.Commands[command]...), config.StoreRuns)
	warmAvg := average(warmTimes)

	coldTimeStr := "TIMEOUT"
	if coldTime > 0 {
		coldTimeStr = fmt.Sprintf("%.3fs", coldTime)
	}

	fmt.Printf("  File average: %s, Cold time: %s, Warm average: %s\n", fileAvg, coldTimeStr, warmAvg)

	return BenchmarkResult{
		Nights:   nights,
		Command:  command,
		FileTime: fileAvg,
		ColdTime: coldTimeStr,
		WarmTime: warmAvg,
	}
}

// runBenchmark executes a command multiple times and returns the first time and the remaining times
func runBenchmark(config BenchmarkConfig, args []string, numRuns int) (coldTime float64, warmTimes []float64) {
	args = append(args, "--ref", config.Reference.Format("2006-01-02"))

	var times []float64
	for run := 1; run <= numRuns; run++ {
		start := time.Now()

		cmd := exec.Command("cpapinsight", args...)

		done := make(chan bool)
		var output []byte
		var cmdErr error

		go func() {
			output, cmdErr = cmd.CombinedOutput()
			done <- true
		}()

		select {
		case <-done:
			if cmdErr == nil && isSuccess(output) {
				times = append(times, time.Since(start).Seconds())
			}
		case <-time.After(config.Timeout):
			_ = cmd.Process.Kill()
		}
	}

	if len(times) > 0 {
		coldTime = times[0]
		warmTimes = times[1:]
	}
	return
}

// isSuccess checks if command output indicates successful completion
func isSuccess(output []byte) bool {
	outputStr := string(output)
	return strings.Contains(outputStr, "completed in") && strings.Contains(outputStr, "for profile")
}

// saveResults writes benchmark results to a timestamped CSV file
func saveResults(results []BenchmarkResult) error {
	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("/tmp/cpapinsight_benchmark_%s.csv", timestamp)

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close file %s: %v\n", filename, closeErr)
		}
	}()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"nights", "cmd", "file_avg", "store_cold", "store_warm_avg"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, result := range results {
		if err := writer.Write([]string{strconv.Itoa(result.Nights), result.Command, result.FileTime, result.ColdTime, result.WarmTime}); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	fmt.Printf("Results saved to %s\n", filename)
	return nil
}

// printSummary displays the final benchmark results summary
func printSummary(results []BenchmarkResult) {
	fmt.Printf("Benchmark complete\n")

	printCommandSummary(results, "report", "Report:")
	printCommandSummary(results, "compare", "Compare:")
	printCommandSummary(results, "timeseries", "Timeseries:")
}

// printCommandSummary displays results for a specific command type
func printCommandSummary(results []BenchmarkResult, command, title string) {
	fmt.Printf("%s\n", title)
	for _, result := range results {
		if result.Command == command {
			fmt.Printf("  %5d nights: File: %s, Cold: %s, Warm: %s\n", result.Nights, result.FileTime, result.ColdTime, result.WarmTime)
		}
	}
}
