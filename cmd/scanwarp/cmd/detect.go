package cmd

import (
	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/scanwarp/internal/job"
)

var detectCmd = &cobra.Command{
	Use:   "detect <image>",
	Short: "Print the page outline found in an image",
	Long: `Detect the largest quadrilateral in an image and print it as eight points:
the four corners followed by the midpoints of the top, right, bottom and
left edges. When no page is found the full image frame is reported.

The source may be a file path, a file://, http(s):// URL or a data: URI.

Examples:
  scanwarp detect receipt.jpg
  scanwarp detect https://example.com/photo.png`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		j := cliJob(args[0], job.OpDetectCorners)
		res, err := runOne(cmd.Context(), GetConfig(), j)
		if err != nil {
			return err
		}
		return writeResult(cmd.OutOrStdout(), res, j, "")
	},
}

var grayscaleCmd = &cobra.Command{
	Use:   "grayscale <image>",
	Short: "Desaturate an image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		j := cliJob(args[0], job.OpGrayscale)
		res, err := runOne(cmd.Context(), GetConfig(), j)
		if err != nil {
			return err
		}
		return writeResult(cmd.OutOrStdout(), res, j, output)
	},
}

func init() {
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(grayscaleCmd)
	grayscaleCmd.Flags().StringP("output", "o", "", "output PNG path (default <name>_grayscale.png)")
}
