package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/scanwarp/internal/job"
)

var warpCmd = &cobra.Command{
	Use:   "warp <image>",
	Short: "Rectify a page onto an upright rectangle",
	Long: `Map a page outline onto a rectangle. With --auto the outline is detected
and the background is whitened afterwards; otherwise --points supplies the
eight outline points in detect order (corners, then edge midpoints).

Examples:
  scanwarp warp photo.jpg --auto -o page.png
  scanwarp warp photo.jpg --points "10,12;600,8;610,820;4,800;305,2;612,410;300,830;0,400"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		auto, _ := cmd.Flags().GetBool("auto")
		rawPoints, _ := cmd.Flags().GetString("points")
		output, _ := cmd.Flags().GetString("output")
		noCleanup, _ := cmd.Flags().GetBool("no-cleanup")

		if auto == (rawPoints != "") {
			return errors.New("exactly one of --auto or --points is required")
		}

		cfg := GetConfig()
		if noCleanup {
			cfg.Cleanup.Enabled = false
		}

		j := cliJob(args[0], job.OpWarpAuto)
		if !auto {
			pts, err := parsePoints(rawPoints)
			if err != nil {
				return err
			}
			j.Operation = job.OpWarp
			j.Points = pts
		}

		res, err := runOne(cmd.Context(), cfg, j)
		if err != nil {
			return err
		}
		return writeResult(cmd.OutOrStdout(), res, j, output)
	},
}

func init() {
	rootCmd.AddCommand(warpCmd)
	warpCmd.Flags().Bool("auto", false, "detect the page outline automatically")
	warpCmd.Flags().String("points", "", `eight outline points as "x,y;x,y;..." or a JSON array`)
	warpCmd.Flags().StringP("output", "o", "", "output PNG path (default <name>_<operation>.png)")
	warpCmd.Flags().Bool("no-cleanup", false, "skip background whitening after --auto")
}
