package repo

import (
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/javanhut/rootcas/internal/nsmap"
	"github.com/javanhut/rootcas/internal/rerr"
)

// rangeConfig is the TOML-serializable form of nsmap.Range.
type rangeConfig struct {
	InsideStart  uint32 `toml:"inside_start"`
	OutsideStart uint32 `toml:"outside_start"`
	Count        uint32 `toml:"count"`
}

type namespaceConfig struct {
	UIDMap []rangeConfig `toml:"uid_map"`
	GIDMap []rangeConfig `toml:"gid_map"`
}

// Remote is a configured remote repository, addressed by local path or
// by a host:port address served by transfer.Serve (see internal/transfer).
type Remote struct {
	Name string `toml:"name"`
	URL  string `toml:"url"`
}

// Config is the repository's config.toml contents: namespace mapping
// captured at init time, plus configured remotes.
type Config struct {
	Namespace namespaceConfig `toml:"namespace"`
	Remotes   []Remote        `toml:"remotes,omitempty"`
}

func toRangeConfig(ranges []nsmap.Range) []rangeConfig {
	out := make([]rangeConfig, len(ranges))
	for i, r := range ranges {
		out[i] = rangeConfig{InsideStart: r.InsideStart, OutsideStart: r.OutsideStart, Count: r.Count}
	}
	return out
}

func fromRangeConfig(ranges []rangeConfig) []nsmap.Range {
	out := make([]nsmap.Range, len(ranges))
	for i, r := range ranges {
		out[i] = nsmap.Range{InsideStart: r.InsideStart, OutsideStart: r.OutsideStart, Count: r.Count}
	}
	return out
}

func newConfig(ns nsmap.Config) *Config {
	return &Config{
		Namespace: namespaceConfig{
			UIDMap: toRangeConfig(ns.UIDMap),
			GIDMap: toRangeConfig(ns.GIDMap),
		},
	}
}

func (c *Config) namespace() nsmap.Config {
	return nsmap.Config{
		UIDMap: fromRangeConfig(c.Namespace.UIDMap),
		GIDMap: fromRangeConfig(c.Namespace.GIDMap),
	}
}

// SetNamespace overwrites the repository's recorded namespace mapping,
// used by internal/remap after chowning every blob to a new mapping.
func (c *Config) SetNamespace(ns nsmap.Config) {
	c.Namespace = namespaceConfig{
		UIDMap: toRangeConfig(ns.UIDMap),
		GIDMap: toRangeConfig(ns.GIDMap),
	}
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, rerr.WithPath(err, path)
	}
	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, rerr.WithPath(err, path)
	}
	return &c, nil
}

func saveConfig(path string, c *Config) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return rerr.WithPath(err, path)
	}
	return nil
}

// AddRemote registers a new remote, failing if the name is already used.
func (c *Config) AddRemote(name, url string) error {
	for _, r := range c.Remotes {
		if r.Name == name {
			return rerr.RemoteNotFound("remote '" + name + "' already exists")
		}
	}
	c.Remotes = append(c.Remotes, Remote{Name: name, URL: url})
	return nil
}

// RemoveRemote deletes a remote by name.
func (c *Config) RemoveRemote(name string) error {
	for i, r := range c.Remotes {
		if r.Name == name {
			c.Remotes = append(c.Remotes[:i], c.Remotes[i+1:]...)
			return nil
		}
	}
	return rerr.RemoteNotFound(name)
}

// GetRemote looks up a remote by name.
func (c *Config) GetRemote(name string) (*Remote, bool) {
	for i := range c.Remotes {
		if c.Remotes[i].Name == name {
			return &c.Remotes[i], true
		}
	}
	return nil, false
}
