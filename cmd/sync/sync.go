package sync

import (
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/ftpmirror/cmd/util"
	"github.com/sidkik/ftpmirror/pkg/config"
	"github.com/sidkik/ftpmirror/pkg/errors"
	"github.com/sidkik/ftpmirror/pkg/progress"
	"github.com/sidkik/ftpmirror/pkg/remote"
	"github.com/sidkik/ftpmirror/pkg/scan"
	"github.com/sidkik/ftpmirror/pkg/state"
	syncEngine "github.com/sidkik/ftpmirror/pkg/sync"
)

// New creates a new `sync` command.
func New() *cobra.Command {
	var dryRun bool
	var configPath string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize the local directory to the remote server.",
		Long: "Compare the local directory against the recorded remote state,\n" +
			"then upload new or changed files and delete removed ones. The\n" +
			"recorded state survives crashes: interrupted transfers are\n" +
			"re-verified on the next run.",
		Run: func(_ *cobra.Command, _ []string) {
			if err := run(configPath, dryRun); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false,
		"Print the plan without changing the remote server or the state log.")
	cmd.Flags().StringVar(&configPath, "config", config.SiteConfigPath,
		"Path to the site configuration.")
	return cmd
}

func run(configPath string, dryRun bool) error {
	site, err := config.ParseSite(configPath)
	if err != nil {
		return errors.WithContext(err, "parse site config")
	}

	store, err := state.Open(site.StateFile)
	if err != nil {
		return errors.WithContext(err, "load recorded state")
	}

	localPaths, err := scan.Scan(site.LocalDir, site.StateFile, site.Exclude)
	if err != nil {
		return errors.WithContext(err, "scan local files")
	}

	// The session is only established once something actually needs the
	// server, so a run with nothing to do never connects.
	client := remote.NewLazy(func() (remote.Client, error) {
		return remote.Dial(remote.Config{
			Host:      site.Host,
			User:      site.User,
			Password:  site.Password,
			RemoteDir: site.RemoteDir,
		})
	})

	executor := &syncEngine.Executor{
		Remote:   client,
		Store:    store,
		Progress: progress.NewTerminal(),
		DryRun:   dryRun,
	}

	failed, abortErr := executor.Delete(syncEngine.PlanDeletions(localPaths, store.Snapshot()))

	// An abort during deletions means the server is unreachable; planning
	// uploads against it would only fail the same way.
	if abortErr == nil {
		differ := syncEngine.Differ{
			Timestamp: func(rel string) (state.Timestamp, error) {
				return scan.Timestamp(site.LocalDir, rel)
			},
			Signature: func(rel string) (string, error) {
				return scan.HashFile(filepath.Join(site.LocalDir, filepath.FromSlash(rel)))
			},
			Size: func(rel string) int64 {
				return scan.Size(site.LocalDir, rel)
			},
		}
		uploads, refreshes, localErrs := differ.PlanUploads(localPaths, store.Snapshot())
		failed += localErrs

		var uploadFailed int
		uploadFailed, abortErr = executor.Upload(site.LocalDir, uploads, refreshes)
		failed += uploadFailed
	}

	// Consolidate the log even after an abort: everything committed so far
	// is safe to keep.
	if !dryRun {
		if err := store.Rewrite(); err != nil {
			return errors.WithContext(err, "rewrite state log")
		}
	}

	if err := client.Quit(); err != nil {
		log.WithError(err).Warn("Failed to close remote session")
	}

	if abortErr != nil {
		return abortErr
	}
	if failed > 0 {
		return errors.NewFriendlyError("%d operations failed", failed)
	}
	return nil
}
