package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sabrina905990/apt/pkg/errors"
)

// FileDefaults is the shape of the optional local YAML defaults file,
// restricted to the handful of keys this backend understands. It exists
// purely for operators running a worker binary by hand, outside of a real
// apt parent that would otherwise push these down via a Configuration
// message.
type FileDefaults struct {
	DebugHTTP    bool   `yaml:"debug_http"`
	DebugGPGV    bool   `yaml:"debug_gpgv"`
	DefaultProxy string `yaml:"default_proxy"`
	UserAgent    string `yaml:"user_agent"`
	GPGVPath     string `yaml:"gpgv_path"`
}

// LoadFile reads and parses the YAML defaults file at path. A missing
// file is not an error: it simply means no local defaults are applied.
func LoadFile(path string) (*FileDefaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "reading config file %s", path)
	}
	var fd FileDefaults
	if err := yaml.Unmarshal(data, &fd); err != nil {
		return nil, errors.Wrapf(errors.ErrConfigParse, "%s: %v", path, err)
	}
	return &fd, nil
}

// Apply merges fd's values into s, following the same precedence as a
// Configuration message field: the two debug switches are always written
// (a key missing from the file counts as false), and each non-empty
// string value overwrites the built-in default.
func (fd *FileDefaults) Apply(s *Store) {
	if fd == nil {
		return
	}
	s.Set("Debug::Acquire::http", boolString(fd.DebugHTTP))
	s.Set("Debug::Acquire::gpgv", boolString(fd.DebugGPGV))
	if fd.DefaultProxy != "" {
		s.Set("Acquire::http::Proxy", fd.DefaultProxy)
	}
	if fd.UserAgent != "" {
		s.Set("Acquire::http::User-Agent", fd.UserAgent)
	}
	if fd.GPGVPath != "" {
		s.Set("Acquire::gpgv::Path", fd.GPGVPath)
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
