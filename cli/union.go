package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/javanhut/rootcas/internal/checkout"
	"github.com/javanhut/rootcas/internal/colors"
	"github.com/javanhut/rootcas/internal/reach"
	"github.com/javanhut/rootcas/internal/repo"
)

var (
	unionOutput     string
	unionOnConflict string
	unionMessage    string
	unionDest       string
	unionCopy       bool
)

func parseConflictPolicy(name string) (reach.ConflictResolution, error) {
	switch name {
	case "", "error":
		return reach.ConflictError, nil
	case "first":
		return reach.ConflictFirst, nil
	case "last":
		return reach.ConflictLast, nil
	default:
		return 0, fmt.Errorf("invalid --on-conflict value: %s", name)
	}
}

var unionCmd = &cobra.Command{
	Use:   "union <refs...>",
	Short: "Merge several refs' trees into a new commit",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if unionOutput == "" {
			return fmt.Errorf("union: --output is required")
		}
		policy, err := parseConflictPolicy(unionOnConflict)
		if err != nil {
			return fmt.Errorf("union: %w", err)
		}

		r, err := repo.Open(".")
		if err != nil {
			return fmt.Errorf("union: %w", err)
		}

		hash, err := reach.Union(r, args, unionOutput, reach.UnionOptions{
			Message:    unionMessage,
			OnConflict: policy,
		})
		if err != nil {
			return fmt.Errorf("union: %w", err)
		}

		fmt.Println(colors.SuccessText(fmt.Sprintf("%s -> %s", unionOutput, hash.String())))
		return nil
	},
}

var unionCheckoutCmd = &cobra.Command{
	Use:   "union-checkout <refs...>",
	Short: "Merge several refs and check out the result, without keeping the intermediate ref",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if unionDest == "" {
			return fmt.Errorf("union-checkout: --destination is required")
		}
		policy, err := parseConflictPolicy(unionOnConflict)
		if err != nil {
			return fmt.Errorf("union-checkout: %w", err)
		}

		r, err := repo.Open(".")
		if err != nil {
			return fmt.Errorf("union-checkout: %w", err)
		}

		const scratchRef = ".union-checkout-scratch"
		hash, err := reach.Union(r, args, scratchRef, reach.UnionOptions{
			Message:    unionMessage,
			OnConflict: policy,
		})
		if err != nil {
			return fmt.Errorf("union-checkout: %w", err)
		}
		defer r.Heads.Delete(scratchRef)

		opts := checkout.DefaultOptions()
		if unionCopy {
			opts.Hardlink = false
		}
		if err := checkout.Checkout(r, scratchRef, unionDest, opts); err != nil {
			return fmt.Errorf("union-checkout: %w", err)
		}

		fmt.Println(colors.SuccessText(fmt.Sprintf("union of %v checked out at %s (%s)", args, unionDest, hash.String())))
		return nil
	},
}

func init() {
	unionCmd.Flags().StringVar(&unionOutput, "output", "", "ref to write the merged commit to")
	unionCmd.Flags().StringVar(&unionOnConflict, "on-conflict", "error", "error|first|last")
	unionCmd.Flags().StringVarP(&unionMessage, "message", "m", "", "commit message")

	unionCheckoutCmd.Flags().StringVar(&unionDest, "destination", "", "directory to check out the merged tree into")
	unionCheckoutCmd.Flags().StringVar(&unionOnConflict, "on-conflict", "error", "error|first|last")
	unionCheckoutCmd.Flags().StringVarP(&unionMessage, "message", "m", "", "commit message")
	unionCheckoutCmd.Flags().BoolVar(&unionCopy, "copy", false, "copy blobs instead of hardlinking")
}
