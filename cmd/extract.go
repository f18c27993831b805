package cmd

import (
	"errors"
	"fmt"

	"github.com/malt3/peicon/pkg/extract"
	"github.com/malt3/peicon/pkg/raster"
	"github.com/spf13/cobra"
)

var (
	extractSource  sourceFlags
	extractUpscale bool
)

func init() {
	extractSource.register(extractCmd)
	extractCmd.Flags().BoolVarP(&extractUpscale, "upscale", "u", false, "upscale small icons after extraction")
	rootCmd.AddCommand(extractCmd)
}

var extractCmd = &cobra.Command{
	Use:   "extract [executable] [output]",
	Short: "Extract the best icon of an executable",
	Long: `Extracts the highest quality icon of a PE executable and writes it to output.
The extension of output selects the format: .ico, .bmp or PNG for everything else.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := extractSource.open(args[0])
		if err != nil {
			return err
		}
		defer src.Close()

		x := extract.New(extract.WithLogger(logger))
		img, err := x.ExtractFrom(src.r, src.size)
		if err != nil {
			return fmt.Errorf("extracting icon from %s: %w", args[0], err)
		}
		if err := raster.WriteFile(args[1], img); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), args[1])

		if !extractUpscale || !x.NeedsUpscale(args[1]) {
			return nil
		}
		upscaled := x.Upscale(args[1])
		if upscaled == "" {
			return errors.New("upscaling failed")
		}
		if upscaled != args[1] {
			fmt.Fprintln(cmd.OutOrStdout(), upscaled)
		}
		return nil
	},
}
