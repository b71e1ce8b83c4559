package replay

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"forecast-combiner/internal/xcsf"
)

// Reporter generates replay reports
type Reporter struct {
	results    *Results
	outputPath string
}

// NewReporter creates a new reporter
func NewReporter(results *Results, outputPath string) *Reporter {
	return &Reporter{
		results:    results,
		outputPath: outputPath,
	}
}

// GenerateReport generates all report formats
func (r *Reporter) GenerateReport() error {
	if err := os.MkdirAll(r.outputPath, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := r.generateSummary(); err != nil {
		return err
	}

	if err := r.generatePredictionLog(); err != nil {
		return err
	}

	if err := r.generateJSONReport(); err != nil {
		return err
	}

	if len(r.results.Performance) > 0 {
		if err := r.generatePerformanceTable("performance_mean.tsv", func(row xcsf.SummaryRow) []float64 { return row.Mean }); err != nil {
			return err
		}
		if err := r.generatePerformanceTable("performance_std.tsv", func(row xcsf.SummaryRow) []float64 { return row.StdDev }); err != nil {
			return err
		}
	}

	return nil
}

// generateSummary generates a human-readable summary
func (r *Reporter) generateSummary() error {
	summaryPath := filepath.Join(r.outputPath, "replay_summary.txt")
	file, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	fmt.Fprintf(file, "REPLAY RESULTS SUMMARY\n")
	fmt.Fprintf(file, "======================\n\n")

	fmt.Fprintf(file, "Strategy: %s\n", r.results.Strategy)
	fmt.Fprintf(file, "Series: %s\n", r.results.Series)
	fmt.Fprintf(file, "Duration: %s\n\n", r.results.EndTime.Sub(r.results.StartTime))

	fmt.Fprintf(file, "PREDICTION ERROR\n")
	fmt.Fprintf(file, "----------------\n")
	fmt.Fprintf(file, "Experiments: %d\n", len(r.results.Experiments))
	fmt.Fprintf(file, "MAE: %.6f (std %.6f)\n", r.results.MAE, r.results.MAEStdDev)
	fmt.Fprintf(file, "RMSE: %.6f\n", r.results.RMSE)
	fmt.Fprintf(file, "Average of forecasts MAE: %.6f\n", r.results.BaselineMAE)
	if r.results.BaselineMAE > 0 {
		fmt.Fprintf(file, "Improvement over average: %.2f%%\n", r.improvement())
	}

	if len(r.results.Experiments) > 1 {
		fmt.Fprintf(file, "\nPER EXPERIMENT\n")
		fmt.Fprintf(file, "--------------\n")
		for _, e := range r.results.Experiments {
			fmt.Fprintf(file, "#%d: %d predictions, %d skipped, MAE %.6f, RMSE %.6f\n",
				e.Experiment, e.Predictions, e.Skipped, e.MAE, e.RMSE)
		}
	}

	log.Info().Str("file", summaryPath).Msg("Summary report generated")
	return nil
}

// generatePredictionLog writes every prediction of the last experiment
func (r *Reporter) generatePredictionLog() error {
	csvPath := filepath.Join(r.outputPath, "predictions.csv")
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create prediction log: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	width := 0
	for _, p := range r.results.Predictions {
		width = max(width, len(p.Forecasts))
	}

	header := []string{"step"}
	for i := 0; i < width; i++ {
		header = append(header, fmt.Sprintf("forecast_%d", i))
	}
	header = append(header, "combined", "average", "actual")
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, p := range r.results.Predictions {
		record := []string{strconv.Itoa(p.Step)}
		for i := 0; i < width; i++ {
			if i < len(p.Forecasts) {
				record = append(record, formatFloat(p.Forecasts[i]))
			} else {
				record = append(record, "")
			}
		}
		record = append(record,
			formatFloat(p.Combined),
			formatFloat(p.Baseline),
			formatFloat(p.Actual),
		)
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	log.Info().Str("file", csvPath).Msg("Prediction log generated")
	return nil
}

// generateJSONReport generates a JSON report with all data
func (r *Reporter) generateJSONReport() error {
	jsonPath := filepath.Join(r.outputPath, "replay_results.json")

	report := map[string]interface{}{
		"summary": map[string]interface{}{
			"strategy":     r.results.Strategy,
			"series":       r.results.Series,
			"start_time":   r.results.StartTime,
			"end_time":     r.results.EndTime,
			"mae":          r.results.MAE,
			"mae_std_dev":  r.results.MAEStdDev,
			"rmse":         r.results.RMSE,
			"baseline_mae": r.results.BaselineMAE,
		},
		"experiments":  r.results.Experiments,
		"generated_at": time.Now(),
	}
	if len(r.results.Performance) > 0 {
		report["performance"] = map[string]interface{}{
			"header": xcsf.Header,
			"window": r.results.Window,
			"rows":   r.results.Performance,
		}
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}

	log.Info().Str("file", jsonPath).Msg("JSON report generated")
	return nil
}

// generatePerformanceTable writes one tab separated row per evaluation
// window, selecting either the mean or the deviation across experiments.
func (r *Reporter) generatePerformanceTable(name string, pick func(xcsf.SummaryRow) []float64) error {
	path := filepath.Join(r.outputPath, name)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create performance table: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	writer.Comma = '\t'
	defer writer.Flush()

	if err := writer.Write(xcsf.Header); err != nil {
		return err
	}
	for _, row := range r.results.Performance {
		record := []string{strconv.Itoa(row.Iteration)}
		for _, v := range pick(row) {
			record = append(record, formatFloat(v))
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	log.Info().Str("file", path).Msg("Performance table generated")
	return nil
}

func (r *Reporter) improvement() float64 {
	return (r.results.BaselineMAE - r.results.MAE) / r.results.BaselineMAE * 100
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// PrintSummary prints a summary to console
func (r *Reporter) PrintSummary() {
	fmt.Println("\n=== REPLAY RESULTS ===")
	fmt.Printf("Strategy: %s\n", r.results.Strategy)
	fmt.Printf("Series: %s\n", r.results.Series)
	fmt.Printf("Experiments: %d\n", len(r.results.Experiments))
	fmt.Printf("MAE: %.6f (std %.6f)\n", r.results.MAE, r.results.MAEStdDev)
	fmt.Printf("RMSE: %.6f\n", r.results.RMSE)
	fmt.Printf("Average of forecasts MAE: %.6f\n", r.results.BaselineMAE)
	if r.results.BaselineMAE > 0 {
		fmt.Printf("Improvement over average: %.2f%%\n", r.improvement())
	}
	fmt.Println("======================")
}
