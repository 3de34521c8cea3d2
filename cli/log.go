package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/javanhut/rootcas/internal/colors"
	"github.com/javanhut/rootcas/internal/objhash"
	"github.com/javanhut/rootcas/internal/refs"
	"github.com/javanhut/rootcas/internal/repo"
)

var logCount int

var logCmd = &cobra.Command{
	Use:   "log <ref>",
	Short: "Walk a ref's parent chain, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := repo.Open(".")
		if err != nil {
			return fmt.Errorf("log: %w", err)
		}

		hash, err := refs.Resolve(r.Heads, args[0])
		if err != nil {
			return fmt.Errorf("log: %w", err)
		}

		visited := make(map[objhash.Hash]struct{})
		queue := []objhash.Hash{hash}
		printed := 0

		for len(queue) > 0 && (logCount <= 0 || printed < logCount) {
			h := queue[0]
			queue = queue[1:]
			if _, ok := visited[h]; ok {
				continue
			}
			visited[h] = struct{}{}

			c, err := r.Store.ReadCommit(h)
			if err != nil {
				return fmt.Errorf("log: %w", err)
			}

			fmt.Printf("%s %s\n", colors.Yellow(h.String()[:12]), c.Message)
			fmt.Printf("  author: %s\n", c.Author)
			printed++

			queue = append(queue, c.Parents...)
		}
		return nil
	},
}

func init() {
	logCmd.Flags().IntVarP(&logCount, "number", "n", 0, "limit the number of commits shown (0 = unlimited)")
}
