package commands

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// watchDebounce coalesces the burst of write events editors produce when
// saving a file.
const watchDebounce = 500 * time.Millisecond

func newWatchCommand() *cobra.Command {
	var flags syncFlags

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Sync on every change to the topology files",
		Long: `Run an initial sync, then watch the topology and extra-vars files and
rerun the sync whenever either changes. Changes arriving in a burst are
coalesced. A failed sync is logged and watching continues.

Reruns against a populated Nautobot will fail on the first duplicate
resource; watch is meant for iterating against a lab instance that is
cleared between edits.`,
		Example: `  clabsync watch --topology lab.clab.yml --extra-vars extra.yml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), &flags)
		},
	}

	flags.register(cmd)
	return cmd
}

func runWatch(ctx context.Context, flags *syncFlags) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch directories rather than files: editors replace files on save,
	// which drops file-level watches.
	watched := map[string]bool{}
	targets := map[string]bool{}
	for _, path := range []string{flags.inputs.topology, flags.inputs.extraVars} {
		if path == "" {
			continue
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		targets[abs] = true
		dir := filepath.Dir(abs)
		if !watched[dir] {
			if err := watcher.Add(dir); err != nil {
				return err
			}
			watched[dir] = true
		}
	}

	syncOnce := func() {
		if err := runSync(ctx, flags); err != nil {
			log.Error().Err(err).Msg("Sync failed, still watching")
		}
	}

	syncOnce()
	log.Info().Str("topology", flags.inputs.topology).Msg("Watching for changes")

	var timer *time.Timer
	pending := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !targets[abs] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			log.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("Change detected")
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("Watch error")

		case <-pending:
			syncOnce()
		}
	}
}
