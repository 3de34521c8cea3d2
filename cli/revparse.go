package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/javanhut/rootcas/internal/refs"
	"github.com/javanhut/rootcas/internal/repo"
)

var revParseShort bool

var revParseCmd = &cobra.Command{
	Use:   "rev-parse <rev>",
	Short: "Resolve a ref name or full commit hash to a commit hash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := repo.Open(".")
		if err != nil {
			return fmt.Errorf("rev-parse: %w", err)
		}

		hash, err := refs.Resolve(r.Heads, args[0])
		if err != nil {
			return fmt.Errorf("rev-parse: %w", err)
		}

		out := hash.String()
		if revParseShort {
			out = out[:12]
		}
		fmt.Println(out)
		return nil
	},
}

func init() {
	revParseCmd.Flags().BoolVar(&revParseShort, "short", false, "print a 12-character hash prefix")
}
