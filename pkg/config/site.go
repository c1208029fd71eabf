package config

import (
	"os"
	"path/filepath"

	"github.com/ghodss/yaml"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"

	"github.com/sidkik/ftpmirror/pkg/errors"
)

const (
	// SiteConfigPath is the default location of the site config, relative
	// to the directory ftpmirror is invoked from.
	SiteConfigPath = "ftpmirror.yaml"

	// InitialSiteConfigVersion is the version assumed for config files
	// that don't specify one.
	InitialSiteConfigVersion = "v1alpha1"

	// SupportedSiteConfigVersion is the config version this binary
	// understands.
	SupportedSiteConfigVersion = "v1alpha1"

	// PasswordEnvKey overrides the password field, so credentials can be
	// kept out of the config file.
	PasswordEnvKey = "FTPMIRROR_PASSWORD"

	// DefaultStateFile is where the state log lives when the config
	// doesn't say, relative to the local directory.
	DefaultStateFile = ".ftpmirror.state"
)

// Site describes one mirrored site: where the files live locally, how to
// reach the server, and what to skip.
type Site struct {
	Version string `json:"version,omitempty"`

	// Host is the server address, with an optional port (21 by default).
	Host string `json:"host"`
	User string `json:"user"`

	// Password may be omitted in favor of the FTPMIRROR_PASSWORD
	// environment variable.
	Password string `json:"password,omitempty"`

	// LocalDir is the root of the tree to mirror.
	LocalDir string `json:"localDir"`

	// RemoteDir, when set, is changed into after login; remote paths are
	// relative to it.
	RemoteDir string `json:"remoteDir,omitempty"`

	// StateFile is the state log location. Relative paths are resolved
	// against LocalDir.
	StateFile string `json:"stateFile,omitempty"`

	// Exclude globs are matched against absolute local paths during the
	// scan.
	Exclude []string `json:"exclude,omitempty"`

	// AuditExclude globs are matched against relative remote paths during
	// an audit.
	AuditExclude []string `json:"auditExclude,omitempty"`
}

func (s Site) getVersion() string {
	return s.Version
}

// homedirExpand will be overridden in mock tests
var homedirExpand = homedir.Expand

// ParseSite parses and validates the site config at path.
func ParseSite(path string) (Site, error) {
	config := Site{Version: InitialSiteConfigVersion}
	if err := parseConfig(path, &config, SupportedSiteConfigVersion); err != nil {
		if _, ok := err.(errors.FileNotFound); ok {
			return Site{}, errors.NewFriendlyError("The site config file "+
				"doesn't exist at %q. Please run `ftpmirror config` to "+
				"create a starter config.", path)
		}
		return Site{}, errors.WithContext(err, "parse")
	}

	if config.Password == "" {
		config.Password = os.Getenv(PasswordEnvKey)
	}

	required := []struct{ field, value string }{
		{"host", config.Host},
		{"user", config.User},
		{"localDir", config.LocalDir},
	}
	for _, req := range required {
		if req.value == "" {
			return Site{}, errors.MissingFieldError{Field: req.field}
		}
	}

	var err error
	config.LocalDir, err = homedirExpand(config.LocalDir)
	if err != nil {
		return Site{}, errors.WithContext(err, "expand local directory")
	}

	// Evaluate relative paths relative to the config path.
	if !filepath.IsAbs(config.LocalDir) {
		config.LocalDir = filepath.Join(filepath.Dir(path), config.LocalDir)
	}

	if config.StateFile == "" {
		config.StateFile = DefaultStateFile
	}
	config.StateFile, err = homedirExpand(config.StateFile)
	if err != nil {
		return Site{}, errors.WithContext(err, "expand state file path")
	}
	if !filepath.IsAbs(config.StateFile) {
		config.StateFile = filepath.Join(config.LocalDir, config.StateFile)
	}
	return config, nil
}

// WriteSite writes the given site config to disk. It refuses to clobber an
// existing file.
func WriteSite(path string, config Site) error {
	if exists, err := afero.Exists(fs, path); err != nil {
		return errors.WithContext(err, "check for existing config")
	} else if exists {
		return errors.NewFriendlyError(
			"A config file already exists at %q. Remove it first to start over.", path)
	}

	config.Version = SupportedSiteConfigVersion
	configBytes, err := yaml.Marshal(config)
	if err != nil {
		return errors.WithContext(err, "marshal")
	}

	// The config may hold a password, so keep it private to the user.
	if err := afero.WriteFile(fs, path, configBytes, 0600); err != nil {
		return errors.WithContext(err, "write")
	}
	return nil
}
