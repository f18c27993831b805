package cmd

import (
	"fmt"

	"github.com/malt3/peicon/pkg/upscale"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(upscaleCmd)
}

var upscaleCmd = &cobra.Command{
	Use:   "upscale [icon]",
	Short: "Upscale an extracted icon",
	Long: `Enlarges a PNG, ICO or BMP icon smaller than 128 pixels and writes it next to the
input as <name>_upscaled.png. Prints the path of the result, or the input path
if the icon is large enough.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := upscale.New(upscale.WithLogger(logger)).UpscaleFile(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}
