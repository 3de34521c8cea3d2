package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/javanhut/rootcas/internal/colors"
	"github.com/javanhut/rootcas/internal/reach"
	"github.com/javanhut/rootcas/internal/repo"
)

var gcDryRun bool

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Remove objects unreachable from any ref",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := repo.Open(".")
		if err != nil {
			return fmt.Errorf("gc: %w", err)
		}

		stats, err := reach.GC(r, gcDryRun)
		if err != nil {
			return fmt.Errorf("gc: %w", err)
		}

		verb := "removed"
		if gcDryRun {
			verb = "would remove"
		}
		fmt.Printf("%s %d blobs, %d trees, %d commits (%d bytes)\n",
			verb, stats.BlobsRemoved, stats.TreesRemoved, stats.CommitsRemoved, stats.BytesFreed)
		fmt.Println(colors.SuccessText("gc complete"))
		return nil
	},
}

func init() {
	gcCmd.Flags().BoolVar(&gcDryRun, "dry-run", false, "report what would be removed without deleting anything")
}
