// Package nsmap implements UID/GID namespace range mapping, translating
// between a repository's logical ("inside") IDs and the host's on-disk
// ("outside") IDs, the way /proc/self/{uid,gid}_map describes a user
// namespace to the kernel.
package nsmap

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/javanhut/rootcas/internal/rerr"
)

// Range is one contiguous ID range mapping, equivalent to one line of
// /proc/self/uid_map: inside IDs [InsideStart, InsideStart+Count) map to
// outside IDs [OutsideStart, OutsideStart+Count).
type Range struct {
	InsideStart  uint32
	OutsideStart uint32
	Count        uint32
}

func saturatingAdd(a, b uint32) uint32 {
	sum := uint64(a) + uint64(b)
	if sum > uint64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(sum)
}

// ContainsInside reports whether id falls within this range's inside span.
func (r Range) ContainsInside(id uint32) bool {
	return id >= r.InsideStart && id < saturatingAdd(r.InsideStart, r.Count)
}

// ContainsOutside reports whether id falls within this range's outside span.
func (r Range) ContainsOutside(id uint32) bool {
	return id >= r.OutsideStart && id < saturatingAdd(r.OutsideStart, r.Count)
}

// Config is a repository's complete UID and GID namespace mapping,
// captured at init time and persisted in config.toml.
type Config struct {
	UIDMap []Range
	GIDMap []Range
}

// Identity returns a Config that maps every ID to itself, used when a
// repository is created outside any user namespace.
func Identity() Config {
	full := Range{InsideStart: 0, OutsideStart: 0, Count: ^uint32(0)}
	return Config{UIDMap: []Range{full}, GIDMap: []Range{full}}
}

// IsIdentity reports whether c is exactly the single full-range identity map.
func (c Config) IsIdentity() bool {
	return rangesEqual(c.UIDMap, Identity().UIDMap) && rangesEqual(c.GIDMap, Identity().GIDMap)
}

func rangesEqual(a, b []Range) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Equal reports whether two namespace configs describe the same mapping.
func Equal(a, b Config) bool {
	return rangesEqual(a.UIDMap, b.UIDMap) && rangesEqual(a.GIDMap, b.GIDMap)
}

// OutsideToInside translates an on-disk ID to its logical (inside) ID using
// the given ranges. ok is false if no range covers outside.
func OutsideToInside(outside uint32, ranges []Range) (inside uint32, ok bool) {
	for _, r := range ranges {
		if r.ContainsOutside(outside) {
			return r.InsideStart + (outside - r.OutsideStart), true
		}
	}
	return 0, false
}

// InsideToOutside translates a logical ID to its on-disk ID using the given
// ranges. ok is false if no range covers inside.
func InsideToOutside(inside uint32, ranges []Range) (outside uint32, ok bool) {
	for _, r := range ranges {
		if r.ContainsInside(inside) {
			return r.OutsideStart + (inside - r.InsideStart), true
		}
	}
	return 0, false
}

// Remap translates an ID that was stored on disk under oldRanges into the
// ID it should carry under newRanges, by round-tripping through the
// logical (inside) ID both mappings share.
func Remap(oldOutside uint32, oldRanges, newRanges []Range) (newOutside uint32, ok bool) {
	inside, ok := OutsideToInside(oldOutside, oldRanges)
	if !ok {
		return 0, false
	}
	return InsideToOutside(inside, newRanges)
}

// ParseIDMap parses the contents of a /proc/self/{uid,gid}_map file:
// whitespace-separated "inside_start outside_start count" lines. Malformed
// or blank lines are skipped, matching the kernel's own tolerance for
// trailing whitespace.
func ParseIDMap(content string) ([]Range, error) {
	var ranges []Range
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 3 {
			continue
		}
		insideStart, err1 := strconv.ParseUint(fields[0], 10, 32)
		outsideStart, err2 := strconv.ParseUint(fields[1], 10, 32)
		count, err3 := strconv.ParseUint(fields[2], 10, 32)
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		ranges = append(ranges, Range{
			InsideStart:  uint32(insideStart),
			OutsideStart: uint32(outsideStart),
			Count:        uint32(count),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, rerr.NamespaceParseError("id_map")
	}
	return ranges, nil
}

func currentIDMap(path string) ([]Range, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, rerr.WithPath(err, path)
	}
	ranges, err := ParseIDMap(string(data))
	if err != nil {
		return nil, rerr.NamespaceParseError(path)
	}
	return ranges, nil
}

// CurrentUIDMap reads and parses /proc/self/uid_map.
func CurrentUIDMap() ([]Range, error) { return currentIDMap("/proc/self/uid_map") }

// CurrentGIDMap reads and parses /proc/self/gid_map.
func CurrentGIDMap() ([]Range, error) { return currentIDMap("/proc/self/gid_map") }

// Current captures the process's full namespace config from /proc.
func Current() (Config, error) {
	uidMap, err := CurrentUIDMap()
	if err != nil {
		return Config{}, err
	}
	gidMap, err := CurrentGIDMap()
	if err != nil {
		return Config{}, err
	}
	if len(uidMap) == 0 {
		uidMap = Identity().UIDMap
	}
	if len(gidMap) == 0 {
		gidMap = Identity().GIDMap
	}
	return Config{UIDMap: uidMap, GIDMap: gidMap}, nil
}
