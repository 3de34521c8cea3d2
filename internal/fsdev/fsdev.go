// Package fsdev wraps the Linux-specific filesystem syscalls rootcas needs
// for xattrs, sparse-file holes, device nodes and FIFOs: the parts
// os.File/os.Chmod/os.Chown don't reach.
package fsdev

import (
	"fmt"
	"os"
	"sort"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/javanhut/rootcas/internal/model"
	"github.com/javanhut/rootcas/internal/objhash"
	"github.com/javanhut/rootcas/internal/rerr"
)

// FileType enumerates the kinds of directory entries the commit engine
// recognizes.
type FileType int

const (
	FileRegular FileType = iota
	FileDirectory
	FileSymlink
	FileBlockDevice
	FileCharDevice
	FileFifo
	FileSocket
)

// FileMetadata is the subset of lstat(2) output the commit engine needs.
type FileMetadata struct {
	Type  FileType
	UID   uint32
	GID   uint32
	Mode  uint32
	Size  uint64
	Major uint32
	Minor uint32
	HasRdev bool
	Ino   uint64
	Dev   uint64
	Nlink uint64
}

// Lstat reads metadata for path without following a trailing symlink.
func Lstat(path string) (FileMetadata, error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return FileMetadata{}, rerr.WithPath(err, path)
	}
	m := FileMetadata{
		UID:   st.Uid,
		GID:   st.Gid,
		Mode:  uint32(st.Mode) & 0o7777,
		Size:  uint64(st.Size),
		Ino:   st.Ino,
		Dev:   uint64(st.Dev),
		Nlink: uint64(st.Nlink),
	}
	switch st.Mode & unix.S_IFMT {
	case unix.S_IFREG:
		m.Type = FileRegular
	case unix.S_IFDIR:
		m.Type = FileDirectory
	case unix.S_IFLNK:
		m.Type = FileSymlink
	case unix.S_IFBLK:
		m.Type = FileBlockDevice
		m.HasRdev = true
		m.Major, m.Minor = unix.Major(uint64(st.Rdev)), unix.Minor(uint64(st.Rdev))
	case unix.S_IFCHR:
		m.Type = FileCharDevice
		m.HasRdev = true
		m.Major, m.Minor = unix.Major(uint64(st.Rdev)), unix.Minor(uint64(st.Rdev))
	case unix.S_IFIFO:
		m.Type = FileFifo
	case unix.S_IFSOCK:
		m.Type = FileSocket
	default:
		m.Type = FileRegular
	}
	return m, nil
}

// CouldBeHardlink reports whether a regular file has more than one link and
// should be tracked for hardlink detection.
func (m FileMetadata) CouldBeHardlink() bool {
	return m.Type == FileRegular && m.Nlink > 1
}

// ReadXattrs lists and reads every extended attribute on path, sorted by
// name. ENOTSUP/ENODATA/EOPNOTSUPP are treated as "no xattrs", not errors.
func ReadXattrs(path string) ([]objhash.Xattr, error) {
	size, err := unix.Llistxattr(path, nil)
	if err != nil {
		if isUnsupportedXattrErr(err) {
			return nil, nil
		}
		return nil, rerr.Xattr(path, fmt.Sprintf("failed to list: %v", err))
	}
	if size == 0 {
		return nil, nil
	}
	buf := make([]byte, size)
	n, err := unix.Llistxattr(path, buf)
	if err != nil {
		if isUnsupportedXattrErr(err) {
			return nil, nil
		}
		return nil, rerr.Xattr(path, fmt.Sprintf("failed to list: %v", err))
	}

	var names []string
	for _, raw := range splitNulTerminated(buf[:n]) {
		names = append(names, raw)
	}

	var xattrs []objhash.Xattr
	for _, name := range names {
		vsize, err := unix.Lgetxattr(path, name, nil)
		if err != nil {
			continue
		}
		vbuf := make([]byte, vsize)
		vn, err := unix.Lgetxattr(path, name, vbuf)
		if err != nil {
			continue
		}
		xattrs = append(xattrs, objhash.Xattr{Name: name, Value: vbuf[:vn]})
	}

	sort.Slice(xattrs, func(i, j int) bool { return xattrs[i].Name < xattrs[j].Name })
	return xattrs, nil
}

func isUnsupportedXattrErr(err error) bool {
	errno, ok := err.(syscall.Errno)
	if !ok {
		return false
	}
	return errno == unix.ENOTSUP || errno == unix.ENODATA || errno == unix.EOPNOTSUPP
}

func splitNulTerminated(buf []byte) []string {
	var out []string
	start := 0
	for i, b := range buf {
		if b == 0 {
			if i > start {
				out = append(out, string(buf[start:i]))
			}
			start = i + 1
		}
	}
	return out
}

// ReadSymlinkTarget reads a symlink's target string.
func ReadSymlinkTarget(path string) (string, error) {
	target, err := os.Readlink(path)
	if err != nil {
		return "", rerr.WithPath(err, path)
	}
	return target, nil
}

// Lchown sets ownership without following symlinks, skipping the syscall
// entirely when it would be a no-op under the current process's identity.
func Lchown(path string, uid, gid uint32) error {
	cur, curg := os.Geteuid(), os.Getegid()
	if int(uid) == cur && int(gid) == curg {
		return nil
	}
	if err := unix.Lchown(path, int(uid), int(gid)); err != nil {
		return rerr.WithPath(err, path)
	}
	return nil
}

// SetXattrs applies a set of extended attributes to path.
func SetXattrs(path string, xattrs []objhash.Xattr) error {
	for _, x := range xattrs {
		if err := unix.Setxattr(path, x.Name, x.Value, 0); err != nil {
			return rerr.Xattr(path, fmt.Sprintf("failed to set %s: %v", x.Name, err))
		}
	}
	return nil
}

// ApplyMetadata sets xattrs, then ownership, then mode, in that order —
// xattrs and chown while the process still has write permission, mode last
// since it may remove it.
func ApplyMetadata(path string, uid, gid, mode uint32, xattrs []objhash.Xattr) error {
	if err := SetXattrs(path, xattrs); err != nil {
		return err
	}
	if err := Lchown(path, uid, gid); err != nil {
		return err
	}
	if err := os.Chmod(path, os.FileMode(mode&0o7777)); err != nil {
		return rerr.WithPath(err, path)
	}
	return nil
}

// CreateSymlink replaces any existing path with a symlink to target, then
// sets ownership (mode is always 0777 for symlinks, so it is not set).
func CreateSymlink(path, target string, uid, gid uint32) error {
	os.Remove(path)
	if err := os.Symlink(target, path); err != nil {
		return rerr.WithPath(err, path)
	}
	return Lchown(path, uid, gid)
}

// CreateDirectory creates path (and any missing parents) and applies metadata.
func CreateDirectory(path string, uid, gid, mode uint32, xattrs []objhash.Xattr) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return rerr.WithPath(err, path)
	}
	return ApplyMetadata(path, uid, gid, mode, xattrs)
}

// CreateFifo creates a named pipe at path.
func CreateFifo(path string, uid, gid, mode uint32, xattrs []objhash.Xattr) error {
	os.Remove(path)
	if err := unix.Mkfifo(path, mode); err != nil {
		return rerr.WithPath(err, path)
	}
	return ApplyMetadata(path, uid, gid, mode, xattrs)
}

// CreateBlockDevice creates a block device node at path.
func CreateBlockDevice(path string, major, minor, uid, gid, mode uint32, xattrs []objhash.Xattr) error {
	return createDeviceNode(path, unix.S_IFBLK, major, minor, uid, gid, mode, xattrs)
}

// CreateCharDevice creates a character device node at path.
func CreateCharDevice(path string, major, minor, uid, gid, mode uint32, xattrs []objhash.Xattr) error {
	return createDeviceNode(path, unix.S_IFCHR, major, minor, uid, gid, mode, xattrs)
}

func createDeviceNode(path string, sflag uint32, major, minor, uid, gid, mode uint32, xattrs []objhash.Xattr) error {
	os.Remove(path)
	dev := unix.Mkdev(major, minor)
	if err := unix.Mknod(path, sflag|mode, int(dev)); err != nil {
		if err == unix.EPERM {
			return rerr.DeviceNodePermission(path)
		}
		return rerr.WithPath(err, path)
	}
	return ApplyMetadata(path, uid, gid, mode, xattrs)
}

// CreateSocketPlaceholder attempts to create an S_IFSOCK node; lacking
// privileges to mknod a socket is not an error, it is skipped.
func CreateSocketPlaceholder(path string, uid, gid, mode uint32, xattrs []objhash.Xattr) error {
	os.Remove(path)
	if err := unix.Mknod(path, unix.S_IFSOCK|mode, 0); err != nil {
		if err == unix.EPERM {
			return nil
		}
		return rerr.WithPath(err, path)
	}
	return ApplyMetadata(path, uid, gid, mode, xattrs)
}

// CreateHardlink replaces any existing link at linkPath with a hard link
// to targetPath.
func CreateHardlink(linkPath, targetPath string) error {
	os.Remove(linkPath)
	if err := os.Link(targetPath, linkPath); err != nil {
		return rerr.WithPath(err, linkPath)
	}
	return nil
}

// FsyncDir opens path as a directory and fsyncs it, the idiom used after
// rename(2) to make the rename durable.
func FsyncDir(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return rerr.WithPath(err, path)
	}
	defer f.Close()
	if err := f.Sync(); err != nil {
		return rerr.WithPath(err, path)
	}
	return nil
}

// DetectSparseRegions uses SEEK_DATA/SEEK_HOLE to find the non-hole byte
// ranges in f. ENXIO from SEEK_DATA ends the scan (no more data). ok is
// false when the filesystem does not support hole detection (EINVAL from
// SEEK_DATA), in which case the file should be treated as fully dense.
func DetectSparseRegions(f *os.File) (regions []model.SparseRegion, ok bool, err error) {
	size, err := f.Seek(0, os.SEEK_END)
	if err != nil {
		return nil, false, err
	}
	if size == 0 {
		return []model.SparseRegion{}, true, nil
	}

	pos := int64(0)
	for pos < size {
		dataStart, err := unix.Seek(int(f.Fd()), pos, unix.SEEK_DATA)
		if err != nil {
			if errno, isErrno := err.(syscall.Errno); isErrno && (errno == unix.ENXIO) {
				break // no more data after pos
			}
			if errno, isErrno := err.(syscall.Errno); isErrno && errno == unix.EINVAL {
				return nil, false, nil // SEEK_DATA unsupported
			}
			return nil, false, err
		}
		holeStart, err := unix.Seek(int(f.Fd()), dataStart, unix.SEEK_HOLE)
		if err != nil {
			return nil, false, err
		}
		regions = append(regions, model.SparseRegion{
			Offset: uint64(dataStart),
			Length: uint64(holeStart - dataStart),
		})
		pos = holeStart
	}
	return regions, true, nil
}

// ReadDataRegions reads and concatenates the bytes covered by regions.
func ReadDataRegions(f *os.File, regions []model.SparseRegion) ([]byte, error) {
	var out []byte
	for _, r := range regions {
		buf := make([]byte, r.Length)
		if _, err := f.ReadAt(buf, int64(r.Offset)); err != nil {
			return nil, err
		}
		out = append(out, buf...)
	}
	return out, nil
}

// WriteSparseFile reconstructs a sparse file from its concatenated data
// regions: truncate to totalSize, then write each region at its offset.
func WriteSparseFile(path string, data []byte, regions []model.SparseRegion, totalSize uint64, mode uint32) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(mode&0o7777))
	if err != nil {
		return rerr.WithPath(err, path)
	}
	defer f.Close()

	if err := f.Truncate(int64(totalSize)); err != nil {
		return rerr.WithPath(err, path)
	}

	offset := uint64(0)
	for _, r := range regions {
		chunk := data[offset : offset+r.Length]
		if _, err := f.WriteAt(chunk, int64(r.Offset)); err != nil {
			return rerr.WithPath(err, path)
		}
		offset += r.Length
	}
	return f.Sync()
}
