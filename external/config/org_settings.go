package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
	internalconfig "github.com/foxseedlab/punchclock/internal/config"
)

// LoadOrgSettings reads a TOML file on top of the defaults; keys absent from
// the file keep their default values.
func LoadOrgSettings(path string) (internalconfig.OrgSettings, error) {
	settings := internalconfig.DefaultOrgSettings()
	md, err := toml.DecodeFile(path, &settings)
	if err != nil {
		return settings, fmt.Errorf("failed to decode org settings %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return settings, fmt.Errorf("unknown keys in org settings %s: %v", path, undecoded)
	}
	return settings, nil
}
