package config

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// WatchPolicies monitors the policies file and calls onChange with the newly
// loaded policies each time it is written. It runs until ctx is cancelled.
//
// An invalid file is logged and ignored; the previous policies stay active.
func WatchPolicies(ctx context.Context, path string, logger zerolog.Logger, onChange func(*PolicyConfig)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	logger.Info().Str("path", path).Msg("Watching policies for changes")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Editors often save via rename, which shows up as Create.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			policies, err := LoadPolicies(path)
			if err != nil {
				logger.Error().Err(err).Str("path", path).Msg("Policy reload failed, keeping previous policies")
				continue
			}

			logger.Info().Str("path", path).Int("routes", len(policies.Routes)).Msg("Policies reloaded")
			onChange(policies)

			// Re-add in case an atomic save replaced the inode.
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error().Err(err).Msg("Policy watcher error")
		}
	}
}
