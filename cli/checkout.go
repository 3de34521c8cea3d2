package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/javanhut/rootcas/internal/checkout"
	"github.com/javanhut/rootcas/internal/colors"
	"github.com/javanhut/rootcas/internal/repo"
)

var (
	checkoutCopy   bool
	checkoutSparse bool
	checkoutForce  bool
)

var checkoutCmd = &cobra.Command{
	Use:   "checkout <ref> <dest>",
	Short: "Materialize a ref's tree onto the filesystem",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, dest := args[0], args[1]

		r, err := repo.Open(".")
		if err != nil {
			return fmt.Errorf("checkout: %w", err)
		}

		opts := checkout.DefaultOptions()
		opts.Force = checkoutForce
		opts.PreserveSparse = checkoutSparse
		if checkoutCopy {
			opts.Hardlink = false
		}

		if err := checkout.Checkout(r, ref, dest, opts); err != nil {
			return fmt.Errorf("checkout: %w", err)
		}

		fmt.Println(colors.SuccessText(fmt.Sprintf("checked out %s at %s", ref, dest)))
		return nil
	},
}

func init() {
	checkoutCmd.Flags().BoolVar(&checkoutCopy, "copy", false, "copy blobs instead of hardlinking")
	checkoutCmd.Flags().BoolVar(&checkoutSparse, "sparse", false, "reconstruct sparse file holes")
	checkoutCmd.Flags().BoolVarP(&checkoutForce, "force", "f", false, "allow checking out into a non-empty destination")
}
