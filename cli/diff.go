package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/javanhut/rootcas/internal/colors"
	"github.com/javanhut/rootcas/internal/reach"
	"github.com/javanhut/rootcas/internal/repo"
)

var diffCmd = &cobra.Command{
	Use:   "diff <ref1> <ref2>",
	Short: "Compare two refs' trees",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := repo.Open(".")
		if err != nil {
			return fmt.Errorf("diff: %w", err)
		}

		changes, err := reach.Diff(r, args[0], args[1])
		if err != nil {
			return fmt.Errorf("diff: %w", err)
		}

		if len(changes) == 0 {
			fmt.Println(colors.SuccessText("no differences"))
			return nil
		}

		for _, c := range changes {
			switch c.Kind {
			case reach.Added:
				fmt.Printf("%s %s\n", colors.AddedPrefix(), c.Path)
			case reach.Deleted:
				fmt.Printf("%s %s\n", colors.DeletedPrefix(), c.Path)
			case reach.Modified, reach.MetadataOnly:
				fmt.Printf("%s %s\n", colors.ModifiedPrefix(), c.Path)
			}
		}
		return nil
	},
}
