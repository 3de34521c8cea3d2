// Package rerr collects the sentinel error kinds used across rootcas so
// callers can classify failures with errors.Is instead of string matching.
package rerr

import (
	"errors"
	"fmt"
)

var (
	ErrNoRepo                   = errors.New("repository not found")
	ErrRepoExists               = errors.New("repository already exists")
	ErrRefNotFound              = errors.New("ref not found")
	ErrInvalidRef               = errors.New("invalid ref name")
	ErrPathNotFound             = errors.New("path not found in tree")
	ErrObjectNotFound           = errors.New("object not found")
	ErrCorruptObject            = errors.New("corrupt object")
	ErrUnionConflict            = errors.New("path conflict during union")
	ErrUnionTypeConflict        = errors.New("type conflict during union")
	ErrTargetNotEmpty           = errors.New("checkout target not empty")
	ErrLockContention           = errors.New("lock contention on repository")
	ErrUnmappedUID              = errors.New("uid not mapped in namespace")
	ErrUnmappedGID              = errors.New("gid not mapped in namespace")
	ErrNamespaceParse           = errors.New("failed to parse namespace mapping")
	ErrRemoteNotFound           = errors.New("remote not found")
	ErrRemoteConnection         = errors.New("remote connection failed")
	ErrRemoteConfig             = errors.New("remote config missing or invalid")
	ErrInvalidEntryName         = errors.New("invalid tree entry name")
	ErrDuplicateEntryName       = errors.New("duplicate tree entry name")
	ErrHardlinkTargetNotFound   = errors.New("hardlink target not found")
	ErrDeviceNodePermission     = errors.New("cannot create device node without privileges")
	ErrInvalidHashHex           = errors.New("invalid hash hex")
	ErrXattr                    = errors.New("xattr error")
	ErrTransport                = errors.New("transport error")
	ErrInvalidConflictPolicy    = errors.New("invalid conflict resolution strategy")
	ErrInvalidObjectType        = errors.New("invalid object type")
	ErrMetadataKeyNotFound      = errors.New("metadata key not found")
	ErrNotFastForward           = errors.New("update is not a fast-forward")
)

// wrapf wraps a sentinel with context, preserving errors.Is against sentinel.
func wrapf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), sentinel)
}

func NoRepo(path string) error         { return wrapf(ErrNoRepo, "%s", path) }
func RepoExists(path string) error     { return wrapf(ErrRepoExists, "%s", path) }
func RefNotFound(name string) error    { return wrapf(ErrRefNotFound, "%s", name) }
func InvalidRef(name string) error     { return wrapf(ErrInvalidRef, "%s", name) }
func PathNotFound(path string) error   { return wrapf(ErrPathNotFound, "%s", path) }
func ObjectNotFound(hash string) error { return wrapf(ErrObjectNotFound, "%s", hash) }
func CorruptObject(hash string) error  { return wrapf(ErrCorruptObject, "hash mismatch for %s", hash) }
func CorruptObjectMessage(msg string) error {
	return wrapf(ErrCorruptObject, "%s", msg)
}
func UnionConflict(path string) error { return wrapf(ErrUnionConflict, "%s", path) }
func UnionTypeConflict(path, firstType, secondType string) error {
	return wrapf(ErrUnionTypeConflict, "at %s: cannot merge %s with %s", path, firstType, secondType)
}
func TargetNotEmpty(path string) error         { return wrapf(ErrTargetNotEmpty, "%s", path) }
func UnmappedUID(uid uint32) error             { return wrapf(ErrUnmappedUID, "%d", uid) }
func UnmappedGID(gid uint32) error             { return wrapf(ErrUnmappedGID, "%d", gid) }
func NamespaceParseError(path string) error    { return wrapf(ErrNamespaceParse, "%s", path) }
func RemoteNotFound(name string) error         { return wrapf(ErrRemoteNotFound, "%s", name) }
func RemoteConnection(detail string) error     { return wrapf(ErrRemoteConnection, "%s", detail) }
func InvalidEntryName(name string) error       { return wrapf(ErrInvalidEntryName, "%s", name) }
func DuplicateEntryName(name string) error     { return wrapf(ErrDuplicateEntryName, "%s", name) }
func HardlinkTargetNotFound(path string) error { return wrapf(ErrHardlinkTargetNotFound, "%s", path) }
func DeviceNodePermission(path string) error   { return wrapf(ErrDeviceNodePermission, "%s", path) }
func InvalidHashHex(s string) error            { return wrapf(ErrInvalidHashHex, "%s", s) }
func Xattr(path, message string) error {
	return wrapf(ErrXattr, "on %s: %s", path, message)
}
func Transport(message string) error { return wrapf(ErrTransport, "%s", message) }
func InvalidConflictPolicy(name string) error {
	return wrapf(ErrInvalidConflictPolicy, "%s", name)
}
func InvalidObjectType(name string) error { return wrapf(ErrInvalidObjectType, "%s", name) }
func MetadataKeyNotFound(key string) error {
	return wrapf(ErrMetadataKeyNotFound, "%s", key)
}

// WithPath wraps an I/O error with path context, mirroring the original
// prototype's IoResultExt helper.
func WithPath(err error, path string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("io error at %s: %w", path, err)
}
