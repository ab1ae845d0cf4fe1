package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/scanwarp/internal/export"
)

var exportCmd = &cobra.Command{
	Use:     "export <images...>",
	Short:   "Bundle images into a PDF, one page per image",
	Example: `  scanwarp export out/*.png -o scans.pdf`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		if err := export.WritePDF(args, output); err != nil {
			return err
		}
		n, err := export.PageCount(output)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d pages)\n", output, n)
		return nil
	},
}

var extractCmd = &cobra.Command{
	Use:     "extract <document.pdf>",
	Short:   "Write the page images embedded in a PDF",
	Example: `  scanwarp extract contract.pdf --pages 1-3 -o pages/`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("output-dir")
		pageRange, _ := cmd.Flags().GetString("pages")

		pages, err := export.ExtractPages(args[0], pageRange)
		if err != nil {
			return err
		}
		if len(pages) == 0 {
			return errors.New("no page images found")
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		stem := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		for _, p := range pages {
			name := stem + "_p" + strconv.Itoa(p.Number)
			if p.Index > 0 {
				name += "_" + strconv.Itoa(p.Index)
			}
			path := filepath.Join(dir, name+p.Ext)
			if err := os.WriteFile(path, p.Data, 0o600); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(extractCmd)
	exportCmd.Flags().StringP("output", "o", "scans.pdf", "output PDF path")
	extractCmd.Flags().StringP("output-dir", "o", ".", "directory for the page images")
	extractCmd.Flags().String("pages", "", "page range, e.g. 1-3,5 (default all)")
}
