package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/javanhut/rootcas/internal/model"
	"github.com/javanhut/rootcas/internal/refs"
	"github.com/javanhut/rootcas/internal/repo"
)

var (
	lsTreePath      string
	lsTreeRecursive bool
)

var lsTreeCmd = &cobra.Command{
	Use:   "ls-tree <ref>",
	Short: "List the entries of a ref's tree, or a subdirectory of it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := repo.Open(".")
		if err != nil {
			return fmt.Errorf("ls-tree: %w", err)
		}

		commitHash, err := refs.Resolve(r.Heads, args[0])
		if err != nil {
			return fmt.Errorf("ls-tree: %w", err)
		}
		c, err := r.Store.ReadCommit(commitHash)
		if err != nil {
			return fmt.Errorf("ls-tree: %w", err)
		}
		tree, err := r.Store.ReadTree(c.Tree)
		if err != nil {
			return fmt.Errorf("ls-tree: %w", err)
		}

		if lsTreePath != "" {
			tree, err = descendToTree(r, tree, lsTreePath)
			if err != nil {
				return fmt.Errorf("ls-tree: %w", err)
			}
		}

		return printTree(r, tree, "", lsTreeRecursive)
	},
}

func init() {
	lsTreeCmd.Flags().StringVar(&lsTreePath, "path", "", "list a subdirectory instead of the root")
	lsTreeCmd.Flags().BoolVar(&lsTreeRecursive, "recursive", false, "recurse into subdirectories")
}

// descendToTree walks path's components from root, returning the Tree at
// that location.
func descendToTree(r *repo.Repo, root *model.Tree, path string) (*model.Tree, error) {
	components := strings.Split(strings.Trim(path, "/"), "/")
	current := root
	for _, name := range components {
		if name == "" {
			continue
		}
		entry, ok := current.Get(name)
		if !ok || entry.Type != model.EntryDirectory {
			return nil, fmt.Errorf("path not found: %s", path)
		}
		next, err := r.Store.ReadTree(entry.Hash)
		if err != nil {
			return nil, err
		}
		current = next
	}
	return current, nil
}

func printTree(r *repo.Repo, tree *model.Tree, prefix string, recursive bool) error {
	for _, entry := range tree.Entries {
		full := prefix + entry.Name
		fmt.Printf("%06o %-12s %s %s\n", entry.Mode, entry.Type, entry.Hash.String(), full)
		if recursive && entry.Type == model.EntryDirectory {
			subtree, err := r.Store.ReadTree(entry.Hash)
			if err != nil {
				return err
			}
			if err := printTree(r, subtree, full+"/", recursive); err != nil {
				return err
			}
		}
	}
	return nil
}
