package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/scanwarp/internal/batch"
	"github.com/MeKo-Tech/scanwarp/internal/export"
	"github.com/MeKo-Tech/scanwarp/internal/worker"
)

// batchCmd represents the batch command for parallel rectification.
var batchCmd = &cobra.Command{
	Use:   "batch [files or directories...]",
	Short: "Run many jobs in parallel",
	Long: `Run jobs over image files, directories or a YAML manifest using all worker
contexts. Warped and desaturated images are written as PNG, detected
outlines as JSON. PDF inputs expand to one job per embedded page image.

Manifest format:
  output_dir: flat
  operation: warp_auto
  continue_on_error: true
  jobs:
    - source: scans/page1.jpg
    - id: cover
      source: https://example.com/cover.png
      operation: detect_corners
    - source: contract.pdf
      pages: 1-3

Examples:
  scanwarp batch *.jpg
  scanwarp batch scans/ --recursive --operation grayscale
  scanwarp batch --manifest jobs.yaml --report report.json --pdf flat.pdf`,
	RunE: runBatchCommand,
}

func runBatchCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	manifestPath, _ := cmd.Flags().GetString("manifest")
	manifest, err := loadBatchManifest(cmd, manifestPath, args)
	if err != nil {
		return err
	}

	outputDir := cfg.Batch.OutputDir
	if manifest.OutputDir != "" {
		outputDir = manifest.OutputDir
	}
	if cmd.Flags().Changed("output-dir") {
		outputDir, _ = cmd.Flags().GetString("output-dir")
	}

	continueOnError := cfg.Batch.ContinueOnError
	if manifest.ContinueOnError != nil {
		continueOnError = *manifest.ContinueOnError
	}
	if cmd.Flags().Changed("continue-on-error") {
		continueOnError, _ = cmd.Flags().GetBool("continue-on-error")
	}

	jobs, err := manifest.Jobs()
	if err != nil {
		return err
	}

	var progress worker.ProgressCallback = worker.NoOpProgressCallback{}
	if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
		progress = worker.NewBarProgress(cmd.ErrOrStderr(), "Processing")
	}

	pool, err := newPool(cfg, nil)
	if err != nil {
		return err
	}
	defer pool.Close()

	runner := batch.NewRunner(pool, batch.Options{
		OutputDir:       outputDir,
		ContinueOnError: continueOnError,
		Progress:        progress,
	})
	summary, runErr := runner.Run(cmd.Context(), jobs)
	if summary == nil {
		return runErr
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Processed %d jobs: %d images, %d outlines, %d unchanged, %d failed\n",
		summary.Total, summary.Images, summary.Detected, summary.Unchanged, summary.Failed)

	if report, _ := cmd.Flags().GetString("report"); report != "" {
		if err := summary.WriteReport(report); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		_, _ = fmt.Fprintf(out, "Report written to %s\n", report)
	}

	if pdfPath, _ := cmd.Flags().GetString("pdf"); pdfPath != "" {
		switch err := export.WritePDF(summary.ImageOutputs(), pdfPath); {
		case errors.Is(err, export.ErrNoPages):
			slog.Warn("No images to export", "pdf", pdfPath)
		case err != nil:
			return fmt.Errorf("failed to export PDF: %w", err)
		default:
			_, _ = fmt.Fprintf(out, "PDF written to %s\n", pdfPath)
		}
	}

	return runErr
}

// loadBatchManifest reads --manifest or builds a manifest from the
// discovered files.
func loadBatchManifest(cmd *cobra.Command, path string, args []string) (*batch.Manifest, error) {
	operation, _ := cmd.Flags().GetString("operation")

	if path != "" {
		if len(args) > 0 {
			return nil, errors.New("--manifest cannot be combined with file arguments")
		}
		m, err := batch.LoadManifest(path)
		if err != nil {
			return nil, err
		}
		if cmd.Flags().Changed("operation") {
			m.Operation = operation
		}
		return m, nil
	}

	if len(args) == 0 {
		return nil, errors.New("no inputs: pass files, directories or --manifest")
	}
	recursive, _ := cmd.Flags().GetBool("recursive")
	include, _ := cmd.Flags().GetStringSlice("include")
	exclude, _ := cmd.Flags().GetStringSlice("exclude")

	files, err := batch.DiscoverFiles(args, recursive, include, exclude)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.New("no supported image or PDF files found")
	}
	m := batch.ManifestFromFiles(files, operation)
	return m, m.Validate()
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().String("manifest", "", "YAML manifest describing the jobs")
	batchCmd.Flags().String("operation", "warp_auto", "operation for jobs that name none")
	batchCmd.Flags().String("output-dir", "out", "directory for outputs")
	batchCmd.Flags().Bool("continue-on-error", true, "keep going after a failed job")
	batchCmd.Flags().BoolP("recursive", "r", false, "walk directories recursively")
	batchCmd.Flags().StringSlice("include", nil, "file name patterns to include")
	batchCmd.Flags().StringSlice("exclude", nil, "file name patterns to exclude")
	batchCmd.Flags().BoolP("quiet", "q", false, "hide the progress bar")
	batchCmd.Flags().String("report", "", "write a JSON report of all outcomes")
	batchCmd.Flags().String("pdf", "", "bundle the written images into a PDF")
}
