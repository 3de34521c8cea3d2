package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/javanhut/rootcas/internal/colors"
	"github.com/javanhut/rootcas/internal/refs"
	"github.com/javanhut/rootcas/internal/repo"
)

var refsCmd = &cobra.Command{
	Use:   "refs",
	Short: "List every ref under refs/heads",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := repo.Open(".")
		if err != nil {
			return fmt.Errorf("refs: %w", err)
		}

		names, err := r.Heads.List()
		if err != nil {
			return fmt.Errorf("refs: %w", err)
		}

		for _, name := range names {
			hash, err := r.Heads.Read(name)
			if err != nil {
				return fmt.Errorf("refs: %w", err)
			}
			fmt.Printf("%s %s\n", colors.Yellow(hash.String()[:12]), name)
		}
		return nil
	},
}

var showRefCmd = &cobra.Command{
	Use:   "show-ref <ref>",
	Short: "Print the commit hash a ref points at",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := repo.Open(".")
		if err != nil {
			return fmt.Errorf("show-ref: %w", err)
		}

		hash, err := refs.Resolve(r.Heads, args[0])
		if err != nil {
			return fmt.Errorf("show-ref: %w", err)
		}

		fmt.Println(hash.String())
		return nil
	},
}

var deleteRefCmd = &cobra.Command{
	Use:   "delete-ref <ref>",
	Short: "Remove a ref",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := repo.Open(".")
		if err != nil {
			return fmt.Errorf("delete-ref: %w", err)
		}

		if err := r.Heads.Delete(args[0]); err != nil {
			return fmt.Errorf("delete-ref: %w", err)
		}

		fmt.Println(colors.SuccessText(fmt.Sprintf("deleted %s", args[0])))
		return nil
	},
}
