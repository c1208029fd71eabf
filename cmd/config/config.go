package config

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sidkik/ftpmirror/cmd/util"
	"github.com/sidkik/ftpmirror/pkg/config"
	"github.com/sidkik/ftpmirror/pkg/errors"
)

// Mocked for unit testing.
var stdout io.Writer = os.Stdout

// New creates a new `config` command.
func New() *cobra.Command {
	var opts config.Site
	var path string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write a starter site configuration.",
		Run: func(_ *cobra.Command, _ []string) {
			if err := run(path, opts); err != nil {
				err = errors.NewFriendlyError("Failed to write configuration:\n%s",
					errors.GetPrintableMessage(err))
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().StringVar(&path, "path", config.SiteConfigPath,
		"Where to write the site configuration.")
	cmd.Flags().StringVar(&opts.Host, "host", "ftp.example.com",
		"The server address, with an optional port.")
	cmd.Flags().StringVar(&opts.User, "user", "anonymous",
		"The login user.")
	cmd.Flags().StringVar(&opts.LocalDir, "local-dir", ".",
		"The root of the local tree to mirror.")
	cmd.Flags().StringVar(&opts.RemoteDir, "remote-dir", "",
		"The remote directory to mirror into.")
	return cmd
}

func run(path string, opts config.Site) error {
	if err := config.WriteSite(path, opts); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Wrote %s.\n", path)
	fmt.Fprintf(stdout, "Set the password there or export %s, then run `ftpmirror sync`.\n",
		config.PasswordEnvKey)
	return nil
}
