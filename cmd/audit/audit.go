package audit

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/ftpmirror/cmd/util"
	"github.com/sidkik/ftpmirror/pkg/audit"
	"github.com/sidkik/ftpmirror/pkg/config"
	"github.com/sidkik/ftpmirror/pkg/errors"
	"github.com/sidkik/ftpmirror/pkg/remote"
	"github.com/sidkik/ftpmirror/pkg/state"
)

// Mocked for unit testing.
var stdout io.Writer = os.Stdout

// New creates a new `audit` command.
func New() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Report drift between the recorded state and the remote server.",
		Long: "List the remote server and compare it against the recorded\n" +
			"state. Audit only reports: every remediation is printed as a\n" +
			"suggestion and nothing is changed.",
		Run: func(_ *cobra.Command, _ []string) {
			if err := run(configPath); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().StringVar(&configPath, "config", config.SiteConfigPath,
		"Path to the site configuration.")
	return cmd
}

func run(configPath string) error {
	site, err := config.ParseSite(configPath)
	if err != nil {
		return errors.WithContext(err, "parse site config")
	}

	store, err := state.Open(site.StateFile)
	if err != nil {
		return errors.WithContext(err, "load recorded state")
	}

	client, err := remote.Dial(remote.Config{
		Host:      site.Host,
		User:      site.User,
		Password:  site.Password,
		RemoteDir: site.RemoteDir,
	})
	if err != nil {
		return err
	}

	raw, err := client.ListRecursive()
	if err != nil {
		client.Quit()
		return errors.WithContext(err, "list remote files")
	}

	auditor := audit.Auditor{
		Recorded:  store.Snapshot(),
		LocalRoot: site.LocalDir,
		Excludes:  site.AuditExclude,
	}
	auditor.Run(remote.ParseListing(raw)).Render(stdout)

	if err := client.Quit(); err != nil {
		log.WithError(err).Warn("Failed to close remote session")
	}
	return nil
}
