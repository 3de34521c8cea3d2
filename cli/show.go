package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/javanhut/rootcas/internal/refs"
	"github.com/javanhut/rootcas/internal/repo"
	"github.com/javanhut/rootcas/internal/rerr"
)

var showMetadataKey string

var showCmd = &cobra.Command{
	Use:   "show <rev>",
	Short: "Print a commit's metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := repo.Open(".")
		if err != nil {
			return fmt.Errorf("show: %w", err)
		}

		hash, err := refs.Resolve(r.Heads, args[0])
		if err != nil {
			return fmt.Errorf("show: %w", err)
		}

		c, err := r.Store.ReadCommit(hash)
		if err != nil {
			return fmt.Errorf("show: %w", err)
		}

		if showMetadataKey != "" {
			value, ok := c.Metadata[showMetadataKey]
			if !ok {
				return fmt.Errorf("show: %w", rerr.MetadataKeyNotFound(showMetadataKey))
			}
			fmt.Println(value)
			return nil
		}

		fmt.Printf("commit %s\n", hash.String())
		fmt.Printf("tree %s\n", c.Tree.String())
		fmt.Printf("author %s\n", c.Author)
		fmt.Printf("timestamp %d\n\n", c.Timestamp)
		fmt.Println(c.Message)
		for k, v := range c.Metadata {
			fmt.Printf("%s: %s\n", k, v)
		}
		return nil
	},
}

func init() {
	showCmd.Flags().StringVar(&showMetadataKey, "print-metadata-key", "", "print only the value of this metadata key")
}
