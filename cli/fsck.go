package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/javanhut/rootcas/internal/colors"
	"github.com/javanhut/rootcas/internal/reach"
	"github.com/javanhut/rootcas/internal/repo"
)

var fsckCmd = &cobra.Command{
	Use:   "fsck",
	Short: "Verify repository object integrity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := repo.Open(".")
		if err != nil {
			return fmt.Errorf("fsck: %w", err)
		}

		report, err := reach.Fsck(r)
		if err != nil {
			return fmt.Errorf("fsck: %w", err)
		}

		fmt.Printf("checked %d objects\n", report.ObjectsChecked)
		for _, c := range report.CorruptObjects {
			fmt.Printf("%s corrupt %s: %s\n", colors.ErrorText("!"), c.Kind, c.Message)
		}
		for _, m := range report.MissingObjects {
			fmt.Printf("%s missing %s %s (referenced by %s)\n", colors.ErrorText("!"), m.Kind, m.Hash.String(), m.ReferencedBy)
		}
		if len(report.DanglingObjects) > 0 {
			fmt.Printf("%d dangling objects\n", len(report.DanglingObjects))
		}

		if !report.IsOK() {
			return fmt.Errorf("fsck: repository integrity check failed")
		}
		fmt.Println(colors.SuccessText("repository OK"))
		return nil
	},
}
