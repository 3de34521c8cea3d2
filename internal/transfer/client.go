package transfer

import (
	"bufio"
	"io"
	"net"
	"strings"

	"github.com/javanhut/rootcas/internal/objhash"
	"github.com/javanhut/rootcas/internal/rerr"
)

// Connection is a client-side handle on the remote protocol served by
// Serve. The original tool shells out to ssh and a remote helper
// process; this port dials a TCP listener running Serve instead, since
// no SSH client library is available to reach for — DialTCP's job is
// exactly SshConnection::connect's, minus the subprocess.
type Connection struct {
	conn   net.Conn
	reader *bufio.Reader
}

// DialTCP opens a remote connection to a rootcas server listening on
// addr (host:port).
func DialTCP(addr string) (*Connection, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, rerr.RemoteConnection(err.Error())
	}
	return &Connection{conn: conn, reader: bufio.NewReader(conn)}, nil
}

// Close sends "quit" and closes the underlying connection.
func (c *Connection) Close() error {
	writeLine(c.conn, cmdQuit)
	return c.conn.Close()
}

// ListRefs returns every ref the remote advertises, as name/hash pairs.
func (c *Connection) ListRefs() (map[string]objhash.Hash, error) {
	if err := writeLine(c.conn, cmdListRefs); err != nil {
		return nil, rerr.Transport(err.Error())
	}
	lines, err := readUntilEnd(c.reader)
	if err != nil {
		return nil, err
	}
	refs := make(map[string]objhash.Hash, len(lines))
	for _, line := range lines {
		parts := strings.SplitN(line, " ", 2)
		if len(parts) != 2 {
			continue
		}
		h, err := objhash.FromHex(parts[0])
		if err != nil {
			continue
		}
		refs[parts[1]] = h
	}
	return refs, nil
}

// GetRef asks the remote for refName's current hash; ok is false if the
// remote has no such ref.
func (c *Connection) GetRef(refName string) (h objhash.Hash, ok bool, err error) {
	if err := writeLine(c.conn, "%s %s", cmdGetRef, refName); err != nil {
		return objhash.Hash{}, false, rerr.Transport(err.Error())
	}
	lines, err := readUntilEnd(c.reader)
	if err != nil {
		return objhash.Hash{}, false, err
	}
	if len(lines) == 0 || lines[0] == respNotFound {
		return objhash.Hash{}, false, nil
	}
	h, err = objhash.FromHex(lines[0])
	if err != nil {
		return objhash.Hash{}, false, rerr.Transport(err.Error())
	}
	return h, true, nil
}

// FetchMissing asks the remote to send every object reachable from its
// last-requested ref (see GetRef) that is not present in existing,
// writing each received object into writeObject.
func (c *Connection) FetchMissing(existing ObjectSet, writeObject func(kind string, h objhash.Hash, data []byte) error) (Stats, error) {
	var stats Stats

	if err := writeLine(c.conn, cmdHaveObjects); err != nil {
		return stats, rerr.Transport(err.Error())
	}
	for _, ref := range objectSetToRefs(existing) {
		if err := writeLine(c.conn, "%s %s", ref.kind, ref.hash.String()); err != nil {
			return stats, rerr.Transport(err.Error())
		}
	}
	if err := writeEnd(c.conn); err != nil {
		return stats, rerr.Transport(err.Error())
	}

	// the remote first lists what it will send, then sends it.
	if _, err := readUntilEnd(c.reader); err != nil {
		return stats, err
	}

	for {
		line, err := readLine(c.reader)
		if err != nil {
			return stats, rerr.Transport(err.Error())
		}
		if line == respEnd {
			break
		}
		kind, h, size, ok := parseObjectHeader(line)
		if !ok {
			continue
		}
		data := make([]byte, size)
		if _, err := io.ReadFull(c.reader, data); err != nil {
			return stats, rerr.Transport(err.Error())
		}
		if err := writeObject(kind, h, data); err != nil {
			return stats, err
		}
		stats.BytesTransferred += int64(size)
		stats.Copied++
	}

	return stats, nil
}

// WantObjects tells the remote everything this side has and returns the
// subset it reports needing.
func (c *Connection) WantObjects(have ObjectSet) ([]objectRef, error) {
	if err := writeLine(c.conn, cmdWantObjects); err != nil {
		return nil, rerr.Transport(err.Error())
	}
	for _, ref := range objectSetToRefs(have) {
		if err := writeLine(c.conn, "%s %s", ref.kind, ref.hash.String()); err != nil {
			return nil, rerr.Transport(err.Error())
		}
	}
	if err := writeEnd(c.conn); err != nil {
		return nil, rerr.Transport(err.Error())
	}

	lines, err := readUntilEnd(c.reader)
	if err != nil {
		return nil, err
	}
	var needed []objectRef
	for _, line := range lines {
		if ref, ok := parseObjectRefLine(line); ok {
			needed = append(needed, ref)
		}
	}
	return needed, nil
}

// SendObject uploads one object's raw bytes to the remote.
func (c *Connection) SendObject(kind string, h objhash.Hash, data []byte) error {
	if err := writeLine(c.conn, "object %s %s %d", kind, h.String(), len(data)); err != nil {
		return rerr.Transport(err.Error())
	}
	if _, err := c.conn.Write(data); err != nil {
		return rerr.Transport(err.Error())
	}
	_, err := readUntilEnd(c.reader)
	return err
}

// UpdateRef points the remote's refName at h.
func (c *Connection) UpdateRef(refName string, h objhash.Hash) error {
	if err := writeLine(c.conn, "%s %s %s", cmdUpdateRef, refName, h.String()); err != nil {
		return rerr.Transport(err.Error())
	}
	_, err := readUntilEnd(c.reader)
	return err
}
