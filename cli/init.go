package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/javanhut/rootcas/internal/colors"
	"github.com/javanhut/rootcas/internal/repo"
)

var initCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "Initialize a new rootcas repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if _, err := repo.Init(path); err != nil {
			return fmt.Errorf("init: %w", err)
		}
		fmt.Println(colors.SuccessText(fmt.Sprintf("initialized rootcas repository at %s", path)))
		return nil
	},
}
