package config

import (
	"fmt"
	"os"
	"testing"

	"github.com/ghodss/yaml"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"

	"github.com/sidkik/ftpmirror/pkg/errors"
)

func TestParseSite(t *testing.T) {
	path := "/work/ftpmirror.yaml"
	siteEmptyVersion := Site{
		Host:     "ftp.example.com",
		User:     "deploy",
		Password: "hunter2",
		LocalDir: "site",
	}
	siteCorrectVersion := siteEmptyVersion
	siteCorrectVersion.Version = SupportedSiteConfigVersion
	siteIncorrectVersion := siteEmptyVersion
	siteIncorrectVersion.Version = "incorrect_version"
	siteMissingHost := siteEmptyVersion
	siteMissingHost.Host = ""

	// What a successfully parsed config resolves to: the relative local
	// directory is anchored at the config file's directory, and the state
	// file defaults into the local directory.
	resolved := func(version string) Site {
		out := siteEmptyVersion
		out.Version = version
		out.LocalDir = "/work/site"
		out.StateFile = "/work/site/.ftpmirror.state"
		return out
	}

	siteEmptyVersionString, err := yaml.Marshal(siteEmptyVersion)
	assert.NoError(t, err)
	siteCorrectVersionString, err := yaml.Marshal(siteCorrectVersion)
	assert.NoError(t, err)
	siteIncorrectVersionString, err := yaml.Marshal(siteIncorrectVersion)
	assert.NoError(t, err)
	siteMissingHostString, err := yaml.Marshal(siteMissingHost)
	assert.NoError(t, err)

	tests := []struct {
		input     []byte
		expConfig Site
		expError  error
	}{
		{
			input:     siteEmptyVersionString,
			expConfig: resolved(InitialSiteConfigVersion),
			expError:  nil,
		},
		{
			input:     siteCorrectVersionString,
			expConfig: resolved(SupportedSiteConfigVersion),
			expError:  nil,
		},
		{
			input:     siteIncorrectVersionString,
			expConfig: Site{},
			expError: errors.WithContext(incompatibleVersionError{
				path:   path,
				exp:    SupportedSiteConfigVersion,
				actual: siteIncorrectVersion.Version,
			}, "parse"),
		},
		{
			input: []byte(fmt.Sprintf(
				"version: %s\nextra: fields", SupportedSiteConfigVersion)),
			expConfig: Site{},
			expError: errors.WithContext(
				errors.NewFriendlyError(parseConfigErrTemplate, path,
					errors.New("error unmarshaling JSON: while decoding JSON: "+
						`json: unknown field "extra"`)),
				"parse"),
		},
		{
			input:     siteMissingHostString,
			expConfig: Site{},
			expError:  errors.MissingFieldError{Field: "host"},
		},
	}

	fs = afero.NewMemMapFs()
	homedirExpand = func(path string) (string, error) {
		return path, nil
	}
	for _, test := range tests {
		err := afero.WriteFile(fs, path, test.input, 0644)
		assert.NoError(t, err)
		config, err := ParseSite(path)
		assert.Equal(t, test.expConfig, config)
		assert.Equal(t, test.expError, err)
	}
}

func TestParseSitePasswordEnv(t *testing.T) {
	fs = afero.NewMemMapFs()
	homedirExpand = func(path string) (string, error) {
		return path, nil
	}

	os.Setenv(PasswordEnvKey, "from-env")
	defer os.Unsetenv(PasswordEnvKey)

	input, err := yaml.Marshal(Site{
		Host:     "ftp.example.com",
		User:     "deploy",
		LocalDir: "/site",
	})
	assert.NoError(t, err)
	assert.NoError(t, afero.WriteFile(fs, "/work/ftpmirror.yaml", input, 0644))

	config, err := ParseSite("/work/ftpmirror.yaml")
	assert.NoError(t, err)
	assert.Equal(t, "from-env", config.Password)

	// An explicit password wins over the environment.
	input, err = yaml.Marshal(Site{
		Host:     "ftp.example.com",
		User:     "deploy",
		Password: "explicit",
		LocalDir: "/site",
	})
	assert.NoError(t, err)
	fs = afero.NewMemMapFs()
	assert.NoError(t, afero.WriteFile(fs, "/work/ftpmirror.yaml", input, 0644))

	config, err = ParseSite("/work/ftpmirror.yaml")
	assert.NoError(t, err)
	assert.Equal(t, "explicit", config.Password)
}

func TestParseSiteExplicitStateFile(t *testing.T) {
	fs = afero.NewMemMapFs()
	homedirExpand = func(path string) (string, error) {
		return path, nil
	}

	input, err := yaml.Marshal(Site{
		Host:      "ftp.example.com",
		User:      "deploy",
		Password:  "hunter2",
		LocalDir:  "/site",
		StateFile: "logs/.state",
	})
	assert.NoError(t, err)
	assert.NoError(t, afero.WriteFile(fs, "/work/ftpmirror.yaml", input, 0644))

	config, err := ParseSite("/work/ftpmirror.yaml")
	assert.NoError(t, err)
	assert.Equal(t, "/site/logs/.state", config.StateFile)
}

func TestParseWrittenSite(t *testing.T) {
	fs = afero.NewMemMapFs()
	homedirExpand = func(path string) (string, error) {
		return path, nil
	}

	site := Site{
		Host:     "ftp.example.com",
		User:     "deploy",
		Password: "hunter2",
		LocalDir: "/site",
	}

	// Write the site config to disk, and assert that we get the same config
	// back when we parse it.
	assert.NoError(t, WriteSite("/work/ftpmirror.yaml", site))

	parsed, err := ParseSite("/work/ftpmirror.yaml")
	assert.NoError(t, err)

	site.Version = SupportedSiteConfigVersion
	site.StateFile = "/site/.ftpmirror.state"
	assert.Equal(t, site, parsed)
}

func TestWriteSiteRefusesOverwrite(t *testing.T) {
	fs = afero.NewMemMapFs()

	site := Site{Host: "ftp.example.com", User: "deploy", LocalDir: "/site"}
	assert.NoError(t, WriteSite("/work/ftpmirror.yaml", site))

	err := WriteSite("/work/ftpmirror.yaml", site)
	assert.Error(t, err)
	assert.Contains(t, errors.GetPrintableMessage(err), "already exists")
}
