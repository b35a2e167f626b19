package config

import (
	"context"
	"fmt"

	"github.com/dshills/corrector/internal/watch"
)

// Watch reloads the configuration whenever the config file changes and
// passes the new settings to fn. A reload that fails to parse or validate
// is reported through fn and leaves the previous values in place. Watch
// blocks until ctx is done.
func (c *Config) Watch(ctx context.Context, fn func(Settings, error)) error {
	w, err := watch.New(watch.WithLogger(c.logger))
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(c.path); err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	c.logger.Debug("watching config file", "path", c.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			c.logger.Info("config file changed", "path", ev.Path, "op", ev.Op)
			fn(c.reload(ctx))
		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			c.logger.Warn("config watch error", "error", err)
		}
	}
}

// reload re-reads every layer, rolling back when the result is invalid.
func (c *Config) reload(ctx context.Context) (Settings, error) {
	c.mu.RLock()
	prevLayers := c.layers
	prevMerged := c.merged
	c.mu.RUnlock()

	err := c.Load(ctx)
	if err == nil {
		settings := c.Settings()
		if err = settings.Validate(); err == nil {
			return settings, nil
		}
	}

	c.mu.Lock()
	c.layers = prevLayers
	c.merged = prevMerged
	c.mu.Unlock()
	c.logger.Warn("config reload rejected", "error", err)
	return c.Settings(), err
}
