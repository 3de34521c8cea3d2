package transfer

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/javanhut/rootcas/internal/objhash"
	"github.com/javanhut/rootcas/internal/repo"
	"github.com/javanhut/rootcas/internal/rerr"
)

// Serve runs the remote protocol against rw (typically one side of a
// net.Conn), responding to list-refs/get-ref/have-objects/want-objects/
// object/update-ref/quit requests against r until the client sends quit
// or closes the connection.
func Serve(r *repo.Repo, rw io.ReadWriter) error {
	reader := bufio.NewReader(rw)

	var lastRefHash objhash.Hash
	haveLastRef := false

	for {
		line, err := readLine(reader)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return rerr.Transport(err.Error())
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.SplitN(line, " ", 2)
		cmd := parts[0]
		args := ""
		if len(parts) == 2 {
			args = parts[1]
		}

		switch cmd {
		case cmdListRefs:
			if err := serveListRefs(r, rw); err != nil {
				return err
			}

		case cmdGetRef:
			hash, found, err := serveGetRef(r, args, rw)
			if err != nil {
				return err
			}
			lastRefHash, haveLastRef = hash, found

		case cmdHaveObjects:
			var last objhash.Hash
			if haveLastRef {
				last = lastRefHash
			}
			if err := serveHaveObjects(r, reader, rw, last, haveLastRef); err != nil {
				return err
			}

		case cmdWantObjects:
			if err := serveWantObjects(r, reader, rw); err != nil {
				return err
			}

		case cmdObject:
			if err := serveReceiveObject(r, args, reader, rw); err != nil {
				return err
			}

		case cmdUpdateRef:
			if err := serveUpdateRef(r, args, rw); err != nil {
				return err
			}

		case cmdQuit:
			return nil

		default:
			if err := writeLine(rw, "error: unknown command: %s", cmd); err != nil {
				return err
			}
			if err := writeEnd(rw); err != nil {
				return err
			}
		}
	}
}

func serveListRefs(r *repo.Repo, w io.Writer) error {
	names, err := r.Heads.List()
	if err != nil {
		return err
	}
	for _, name := range names {
		h, err := r.Heads.Read(name)
		if err != nil {
			continue
		}
		if err := writeLine(w, "%s %s", h.String(), name); err != nil {
			return err
		}
	}
	return writeEnd(w)
}

func serveGetRef(r *repo.Repo, refName string, w io.Writer) (objhash.Hash, bool, error) {
	h, err := r.Heads.Read(refName)
	if err != nil {
		if err := writeLine(w, respNotFound); err != nil {
			return objhash.Hash{}, false, err
		}
		return objhash.Hash{}, false, writeEnd(w)
	}
	if err := writeLine(w, "%s", h.String()); err != nil {
		return objhash.Hash{}, false, err
	}
	return h, true, writeEnd(w)
}

func serveHaveObjects(r *repo.Repo, reader *bufio.Reader, w io.Writer, lastRefHash objhash.Hash, haveLastRef bool) error {
	lines, err := readUntilEnd(reader)
	if err != nil {
		return err
	}
	clientHas := make(map[objhash.Hash]struct{})
	for _, line := range lines {
		if ref, ok := parseObjectRefLine(line); ok {
			clientHas[ref.hash] = struct{}{}
		}
	}

	var toSend []objectRef
	if haveLastRef {
		var needed ObjectSet
		if err := collectCommitObjects(r, lastRefHash, &needed, make(map[objhash.Hash]struct{})); err != nil {
			return err
		}
		for _, ref := range objectSetToRefs(needed) {
			if _, ok := clientHas[ref.hash]; !ok {
				toSend = append(toSend, ref)
			}
		}
	}

	for _, ref := range toSend {
		if err := writeLine(w, "%s %s", ref.kind, ref.hash.String()); err != nil {
			return err
		}
	}
	if err := writeEnd(w); err != nil {
		return err
	}

	for _, ref := range toSend {
		path := objectPath(r, kindFromObjectName(ref.kind), ref.hash)
		data, err := os.ReadFile(path)
		if err != nil {
			return rerr.WithPath(err, path)
		}
		if err := writeLine(w, "object %s %s %d", ref.kind, ref.hash.String(), len(data)); err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return rerr.Transport(err.Error())
		}
	}
	return writeEnd(w)
}

func serveWantObjects(r *repo.Repo, reader *bufio.Reader, w io.Writer) error {
	lines, err := readUntilEnd(reader)
	if err != nil {
		return err
	}
	for _, line := range lines {
		ref, ok := parseObjectRefLine(line)
		if !ok {
			continue
		}
		if !r.Store.Has(kindFromObjectName(ref.kind), ref.hash) {
			if err := writeLine(w, "%s %s", ref.kind, ref.hash.String()); err != nil {
				return err
			}
		}
	}
	return writeEnd(w)
}

func serveReceiveObject(r *repo.Repo, args string, reader *bufio.Reader, w io.Writer) error {
	kind, h, size, ok := parseObjectHeader(cmdObject + " " + args)
	if !ok {
		if err := writeLine(w, "error: invalid object args"); err != nil {
			return err
		}
		return writeEnd(w)
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(reader, data); err != nil {
		return rerr.Transport(err.Error())
	}

	dest := objectPath(r, kindFromObjectName(kind), h)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return rerr.WithPath(err, dest)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return rerr.WithPath(err, dest)
	}

	if err := writeLine(w, respOK); err != nil {
		return err
	}
	return writeEnd(w)
}

func serveUpdateRef(r *repo.Repo, args string, w io.Writer) error {
	parts := strings.SplitN(args, " ", 2)
	if len(parts) != 2 {
		if err := writeLine(w, "error: invalid update-ref args"); err != nil {
			return err
		}
		return writeEnd(w)
	}
	h, err := objhash.FromHex(parts[1])
	if err != nil {
		if err := writeLine(w, "error: invalid hash"); err != nil {
			return err
		}
		return writeEnd(w)
	}
	if err := r.Heads.Write(parts[0], h); err != nil {
		return err
	}
	if err := writeLine(w, respOK); err != nil {
		return err
	}
	return writeEnd(w)
}
