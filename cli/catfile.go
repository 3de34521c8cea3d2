package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/javanhut/rootcas/internal/objhash"
	"github.com/javanhut/rootcas/internal/rerr"
	"github.com/javanhut/rootcas/internal/repo"
)

var catFileCmd = &cobra.Command{
	Use:   "cat-file blob|tree|commit <hash>",
	Short: "Print a stored object's contents",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, hashHex := args[0], args[1]

		r, err := repo.Open(".")
		if err != nil {
			return fmt.Errorf("cat-file: %w", err)
		}

		hash, err := objhash.FromHex(hashHex)
		if err != nil {
			return fmt.Errorf("cat-file: %w", err)
		}

		switch kind {
		case "blob":
			content, err := r.Store.ReadBlob(hash)
			if err != nil {
				return fmt.Errorf("cat-file: %w", err)
			}
			os.Stdout.Write(content)
			return nil
		case "tree":
			tree, err := r.Store.ReadTree(hash)
			if err != nil {
				return fmt.Errorf("cat-file: %w", err)
			}
			for _, e := range tree.Entries {
				fmt.Printf("%06o %-6s %s %s\n", e.Mode, e.Type, e.Hash.String(), e.Name)
			}
			return nil
		case "commit":
			c, err := r.Store.ReadCommit(hash)
			if err != nil {
				return fmt.Errorf("cat-file: %w", err)
			}
			fmt.Printf("tree %s\n", c.Tree.String())
			for _, p := range c.Parents {
				fmt.Printf("parent %s\n", p.String())
			}
			fmt.Printf("author %s\n", c.Author)
			fmt.Printf("timestamp %d\n", c.Timestamp)
			fmt.Printf("\n%s\n", c.Message)
			return nil
		default:
			return fmt.Errorf("cat-file: %w", rerr.InvalidObjectType(kind))
		}
	},
}
