package cmd

import (
	"fmt"

	"github.com/malt3/peicon/pkg/extract"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(hasIconCmd)
}

var hasIconCmd = &cobra.Command{
	Use:   "has-icon [executable]",
	Short: "Report whether an executable carries an icon",
	Long:  `Prints true if the executable has a non-empty icon group, false otherwise. The exit status is 1 for false.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		found := extract.New(extract.WithLogger(logger)).HasIcon(args[0])
		fmt.Fprintln(cmd.OutOrStdout(), found)
		if !found {
			return exitStatus(1)
		}
		return nil
	},
}
