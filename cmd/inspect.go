package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/malt3/peicon/pkg/extract"
	"github.com/spf13/cobra"
)

var inspectSource sourceFlags

func init() {
	inspectSource.register(inspectCmd)
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [executable]",
	Short: "Show the sections, resources and icon group of an executable",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := inspectSource.open(args[0])
		if err != nil {
			return err
		}
		defer src.Close()

		rep, err := extract.New(extract.WithLogger(logger)).Inspect(src.r, src.size)
		printReport(cmd.OutOrStdout(), rep)
		return err
	},
}

func printReport(out io.Writer, rep *extract.Report) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	defer w.Flush()

	if len(rep.Sections) == 0 {
		return
	}
	bits := 32
	if rep.Is64 {
		bits = 64
	}
	fmt.Fprintf(w, "PE%d, %d sections\n", bits, len(rep.Sections))
	fmt.Fprintln(w, "NAME\tRVA\tVSIZE\tOFFSET\tSIZE")
	for _, s := range rep.Sections {
		fmt.Fprintf(w, "%s\t0x%x\t0x%x\t0x%x\t0x%x\n", s.Name, s.VirtualAddress, s.VirtualSize, s.RawOffset, s.RawSize)
	}

	if rep.Resource == nil {
		return
	}
	fmt.Fprintf(w, "\nresources at 0x%x (rva 0x%x), %d bytes, %d leaves\n",
		rep.Resource.FileOffset, rep.Resource.BaseRVA, rep.Resource.Size, len(rep.Resources))
	fmt.Fprintln(w, "TYPE\tNAME\tLANG\tRVA\tSIZE")
	for _, l := range rep.Resources {
		fmt.Fprintf(w, "%s\t%s\t%d\t0x%x\t%d\n", entryID(l.Type.ID, l.Type.Named), entryID(l.Name.ID, l.Name.Named), l.Lang.ID, l.Data.RVA, l.Data.Size)
	}

	if len(rep.Group) == 0 {
		return
	}
	fmt.Fprintf(w, "\nicon group, %d entries\n", len(rep.Group))
	fmt.Fprintln(w, "\tID\tSIZE\tBPP\tBYTES\tSCORE")
	for i, e := range rep.Group {
		mark := ""
		if i == rep.Selected {
			mark = "*"
		}
		fmt.Fprintf(w, "%s\t%d\t%dx%d\t%d\t%d\t%d\n", mark, e.ID, e.Width, e.Height, e.BitCount, e.ByteLength, e.Score)
	}
	if rep.Payload != "" {
		fmt.Fprintf(w, "\nselected image is a %s\n", rep.Payload)
	}
}

func entryID(id uint32, named bool) string {
	if named {
		return fmt.Sprintf("name@0x%x", id)
	}
	return fmt.Sprint(id)
}
