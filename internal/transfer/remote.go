package transfer

import (
	"os"
	"path/filepath"

	"github.com/javanhut/rootcas/internal/objhash"
	"github.com/javanhut/rootcas/internal/repo"
	"github.com/javanhut/rootcas/internal/rerr"
)

// PullRemote fetches refName from a remote rootcas server into dst.
func PullRemote(conn *Connection, dst *repo.Repo, refName string, opts PullOptions) (PullResult, error) {
	remoteHash, found, err := conn.GetRef(refName)
	if err != nil {
		return PullResult{}, err
	}
	if !found {
		return PullResult{}, rerr.RefNotFound(refName)
	}

	existing, err := ListAllObjects(dst)
	if err != nil {
		return PullResult{}, err
	}

	if opts.DryRun {
		var needed ObjectSet
		if err := collectCommitObjects(dst, remoteHash, &needed, make(map[objhash.Hash]struct{})); err == nil {
			needed = subtractExisting(needed, existing)
			return PullResult{Hash: remoteHash, ObjectsToTransfer: needed.TotalCount()}, nil
		}
		// the remote commit is not local yet: count what the remote sends
		// without writing any of it.
		stats, err := conn.FetchMissing(existing, func(string, objhash.Hash, []byte) error { return nil })
		if err != nil {
			return PullResult{}, err
		}
		return PullResult{Hash: remoteHash, ObjectsToTransfer: stats.Copied}, nil
	}

	stats, err := conn.FetchMissing(existing, func(kind string, h objhash.Hash, data []byte) error {
		return writeRawObject(dst, kind, h, data)
	})
	if err != nil {
		return PullResult{}, err
	}

	if !opts.FetchOnly {
		if err := dst.Heads.Write(refName, remoteHash); err != nil {
			return PullResult{}, err
		}
	}

	return PullResult{Hash: remoteHash, Stats: stats}, nil
}

// PushRemote sends refName from src to a remote rootcas server,
// rejecting the update unless it is a fast-forward of the remote's
// current ref or Force is set.
func PushRemote(src *repo.Repo, conn *Connection, refName string, opts PushOptions) (PushResult, error) {
	localHash, err := src.Heads.Read(refName)
	if err != nil {
		return PushResult{}, err
	}

	if !opts.Force {
		if remoteHash, found, err := conn.GetRef(refName); err != nil {
			return PushResult{}, err
		} else if found {
			ok, err := isAncestor(src, remoteHash, localHash)
			if err != nil {
				return PushResult{}, err
			}
			if !ok {
				return PushResult{}, rerr.Transport("non-fast-forward update rejected (use --force to override)")
			}
		}
	}

	var all ObjectSet
	if err := collectCommitObjects(src, localHash, &all, make(map[objhash.Hash]struct{})); err != nil {
		return PushResult{}, err
	}

	needed, err := conn.WantObjects(all)
	if err != nil {
		return PushResult{}, err
	}

	if opts.DryRun {
		return PushResult{Hash: localHash, ObjectsToTransfer: len(needed)}, nil
	}

	var stats Stats
	for _, ref := range needed {
		path := objectPath(src, kindFromObjectName(ref.kind), ref.hash)
		data, err := os.ReadFile(path)
		if err != nil {
			return PushResult{}, rerr.WithPath(err, path)
		}
		if err := conn.SendObject(ref.kind, ref.hash, data); err != nil {
			return PushResult{}, err
		}
		stats.BytesTransferred += int64(len(data))
		stats.Copied++
	}

	if err := conn.UpdateRef(refName, localHash); err != nil {
		return PushResult{}, err
	}

	return PushResult{Hash: localHash, Stats: stats}, nil
}

func writeRawObject(r *repo.Repo, kind string, h objhash.Hash, data []byte) error {
	path := objectPath(r, kindFromObjectName(kind), h)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return rerr.WithPath(err, path)
	}
	return rerr.WithPath(os.WriteFile(path, data, 0o644), path)
}
