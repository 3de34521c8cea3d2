package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/javanhut/rootcas/internal/colors"
	"github.com/javanhut/rootcas/internal/repo"
	"github.com/javanhut/rootcas/internal/transfer"
)

var (
	pushForce  bool
	pushDryRun bool
	pullFetch  bool
	pullDryRun bool
)

// isLocalRepo reports whether dest names an existing directory holding a
// rootcas config.toml, as opposed to a host:port address for the remote
// wire protocol.
func isLocalRepo(dest string) bool {
	_, err := os.Stat(filepath.Join(dest, "config.toml"))
	return err == nil
}

var pushCmd = &cobra.Command{
	Use:   "push <dest> <ref>",
	Short: "Send a ref and its objects to another repository",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dest, ref := args[0], args[1]

		r, err := repo.Open(".")
		if err != nil {
			return fmt.Errorf("push: %w", err)
		}

		opts := transfer.PushOptions{Force: pushForce, DryRun: pushDryRun}

		if isLocalRepo(dest) {
			dstRepo, err := repo.Open(dest)
			if err != nil {
				return fmt.Errorf("push: %w", err)
			}
			result, err := transfer.PushLocal(r, dstRepo, ref, opts)
			if err != nil {
				return fmt.Errorf("push: %w", err)
			}
			return reportPushResult(result)
		}

		conn, err := transfer.DialTCP(dest)
		if err != nil {
			return fmt.Errorf("push: %w", err)
		}
		defer conn.Close()

		result, err := transfer.PushRemote(r, conn, ref, opts)
		if err != nil {
			return fmt.Errorf("push: %w", err)
		}
		return reportPushResult(result)
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull <src> <ref>",
	Short: "Fetch a ref and its objects from another repository",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, ref := args[0], args[1]

		r, err := repo.Open(".")
		if err != nil {
			return fmt.Errorf("pull: %w", err)
		}

		opts := transfer.PullOptions{FetchOnly: pullFetch, DryRun: pullDryRun}

		if isLocalRepo(src) {
			srcRepo, err := repo.Open(src)
			if err != nil {
				return fmt.Errorf("pull: %w", err)
			}
			result, err := transfer.PullLocal(srcRepo, r, ref, opts)
			if err != nil {
				return fmt.Errorf("pull: %w", err)
			}
			return reportPullResult(result)
		}

		conn, err := transfer.DialTCP(src)
		if err != nil {
			return fmt.Errorf("pull: %w", err)
		}
		defer conn.Close()

		result, err := transfer.PullRemote(conn, r, ref, opts)
		if err != nil {
			return fmt.Errorf("pull: %w", err)
		}
		return reportPullResult(result)
	},
}

func reportPushResult(result transfer.PushResult) error {
	if pushDryRun {
		fmt.Printf("would transfer %d objects\n", result.ObjectsToTransfer)
		return nil
	}
	fmt.Printf("copied %d, hardlinked %d, skipped %d\n", result.Stats.Copied, result.Stats.Hardlinked, result.Stats.Skipped)
	fmt.Println(colors.SuccessText(fmt.Sprintf("pushed -> %s", result.Hash.String())))
	return nil
}

func reportPullResult(result transfer.PullResult) error {
	if pullDryRun {
		fmt.Printf("would transfer %d objects\n", result.ObjectsToTransfer)
		return nil
	}
	fmt.Printf("copied %d, hardlinked %d, skipped %d\n", result.Stats.Copied, result.Stats.Hardlinked, result.Stats.Skipped)
	fmt.Println(colors.SuccessText(fmt.Sprintf("pulled -> %s", result.Hash.String())))
	return nil
}

func init() {
	pushCmd.Flags().BoolVar(&pushForce, "force", false, "push even if not a fast-forward")
	pushCmd.Flags().BoolVar(&pushDryRun, "dry-run", false, "report what would transfer without transferring")

	pullCmd.Flags().BoolVar(&pullFetch, "fetch-only", false, "fetch objects without updating the local ref")
	pullCmd.Flags().BoolVar(&pullDryRun, "dry-run", false, "report what would transfer without transferring")
}
