// Package cli implements rootcas's command-line surface: one
// *cobra.Command per verb, wired together in init(), matching the
// teacher's rootCmd/AddCommand shape.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/javanhut/rootcas/internal/rlog"
)

const rootcasVersion = "0.1.0"

var verbose bool

var rootCmd = &cobra.Command{
	Use:     "rootcas",
	Short:   "rootcas is a content-addressed rootfs object store",
	Long:    `rootcas records, checks out, and transfers filesystem trees as content-addressed commits.`,
	Version: rootcasVersion,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		rlog.SetDebug(verbose)
	},
}

// Execute runs the root command, exiting non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(commitCmd)
	rootCmd.AddCommand(checkoutCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(lsTreeCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(unionCmd)
	rootCmd.AddCommand(unionCheckoutCmd)
	rootCmd.AddCommand(fsckCmd)
	rootCmd.AddCommand(gcCmd)
	rootCmd.AddCommand(remapCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(refsCmd)
	rootCmd.AddCommand(showRefCmd)
	rootCmd.AddCommand(deleteRefCmd)
	rootCmd.AddCommand(catFileCmd)
	rootCmd.AddCommand(revParseCmd)
	rootCmd.AddCommand(showCmd)
}
