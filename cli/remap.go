package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/javanhut/rootcas/internal/colors"
	"github.com/javanhut/rootcas/internal/remap"
	"github.com/javanhut/rootcas/internal/repo"
)

var (
	remapForce  bool
	remapDryRun bool
)

var remapCmd = &cobra.Command{
	Use:   "remap",
	Short: "Translate stored blob ownership into the current UID/GID namespace",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := repo.Open(".")
		if err != nil {
			return fmt.Errorf("remap: %w", err)
		}

		stats, err := remap.Remap(r, remap.Options{Force: remapForce, DryRun: remapDryRun})
		if err != nil {
			return fmt.Errorf("remap: %w", err)
		}

		fmt.Printf("remapped %d/%d blobs (skipped %d unmapped source, %d unmapped target)\n",
			stats.Remapped, stats.Total, stats.SkippedUnmappedSource, stats.SkippedUnmappedTarget)
		fmt.Println(colors.SuccessText("remap complete"))
		return nil
	},
}

func init() {
	remapCmd.Flags().BoolVar(&remapForce, "force", false, "skip blobs that can't be remapped instead of failing")
	remapCmd.Flags().BoolVar(&remapDryRun, "dry-run", false, "report what would change without touching any file")
}
