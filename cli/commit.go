package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/javanhut/rootcas/internal/colors"
	"github.com/javanhut/rootcas/internal/commitengine"
	"github.com/javanhut/rootcas/internal/repo"
)

var (
	commitRefName string
	commitMessage string
	commitAuthor  string
)

var commitCmd = &cobra.Command{
	Use:   "commit <src>",
	Short: "Record src as a new commit on a ref",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src := args[0]
		if commitRefName == "" {
			return fmt.Errorf("commit: --ref-name is required")
		}

		r, err := repo.Open(".")
		if err != nil {
			return fmt.Errorf("commit: %w", err)
		}

		hash, err := commitengine.Commit(r, src, commitRefName, commitengine.Options{
			Message: commitMessage,
			Author:  commitAuthor,
		})
		if err != nil {
			return fmt.Errorf("commit: %w", err)
		}

		fmt.Println(colors.SuccessText(fmt.Sprintf("%s -> %s", commitRefName, hash.String())))
		return nil
	},
}

func init() {
	commitCmd.Flags().StringVar(&commitRefName, "ref-name", "", "ref to update with the new commit")
	commitCmd.Flags().StringVarP(&commitMessage, "message", "m", "", "commit message")
	commitCmd.Flags().StringVarP(&commitAuthor, "author", "a", "", "commit author")
}
