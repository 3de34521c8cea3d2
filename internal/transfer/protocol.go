package transfer

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/javanhut/rootcas/internal/objhash"
	"github.com/javanhut/rootcas/internal/rerr"
)

// The remote protocol is a line-oriented request/response exchange over
// any io.Reader/io.Writer pair — a net.Conn dialed by DialTCP below, or
// (unwired here, but the same shape) a piped subprocess. Each response
// ends with a line reading "end". Object payloads are sent as a header
// line ("object <kind> <hash> <size>") immediately followed by exactly
// size raw bytes.
const (
	cmdListRefs    = "list-refs"
	cmdGetRef      = "get-ref"
	cmdHaveObjects = "have-objects"
	cmdWantObjects = "want-objects"
	cmdObject      = "object"
	cmdUpdateRef   = "update-ref"
	cmdQuit        = "quit"

	respEnd      = "end"
	respNotFound = "not-found"
	respOK       = "ok"
)

func objectKindName(kind string) string {
	switch kind {
	case "blobs":
		return "blob"
	case "trees":
		return "tree"
	case "commits":
		return "commit"
	default:
		return kind
	}
}

func kindFromObjectName(name string) string {
	switch name {
	case "blob":
		return "blobs"
	case "tree":
		return "trees"
	case "commit":
		return "commits"
	default:
		return name
	}
}

// objectRef names one object by kind and hash, the unit the protocol
// negotiates have/want lists in.
type objectRef struct {
	kind string // "blob", "tree", or "commit"
	hash objhash.Hash
}

func objectSetToRefs(set ObjectSet) []objectRef {
	var refs []objectRef
	for _, h := range set.Blobs {
		refs = append(refs, objectRef{"blob", h})
	}
	for _, h := range set.Trees {
		refs = append(refs, objectRef{"tree", h})
	}
	for _, h := range set.Commits {
		refs = append(refs, objectRef{"commit", h})
	}
	return refs
}

func writeLine(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format+"\n", args...)
	return err
}

func writeEnd(w io.Writer) error {
	return writeLine(w, respEnd)
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readUntilEnd reads lines until one equal to "end", returning all lines
// seen before it.
func readUntilEnd(r *bufio.Reader) ([]string, error) {
	var lines []string
	for {
		line, err := readLine(r)
		if err != nil {
			return lines, rerr.Transport(fmt.Sprintf("reading protocol stream: %v", err))
		}
		if line == respEnd {
			return lines, nil
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
}

func parseObjectRefLine(line string) (objectRef, bool) {
	parts := strings.SplitN(line, " ", 2)
	if len(parts) != 2 {
		return objectRef{}, false
	}
	h, err := objhash.FromHex(parts[1])
	if err != nil {
		return objectRef{}, false
	}
	return objectRef{kind: parts[0], hash: h}, true
}

func parseObjectHeader(line string) (kind string, h objhash.Hash, size int, ok bool) {
	parts := strings.SplitN(line, " ", 4)
	if len(parts) != 4 || parts[0] != cmdObject {
		return "", objhash.Hash{}, 0, false
	}
	hash, err := objhash.FromHex(parts[2])
	if err != nil {
		return "", objhash.Hash{}, 0, false
	}
	n, err := strconv.Atoi(parts[3])
	if err != nil {
		return "", objhash.Hash{}, 0, false
	}
	return parts[1], hash, n, true
}
