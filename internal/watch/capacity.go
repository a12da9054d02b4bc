package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// CapacityConfig is the hot-reloadable subset of allocator construction
// parameters. A running host applies it to a future allocator.New call
// (Reset keeps the maxAllocs an allocator was built with); it never
// mutates a live Allocator's node pool directly, since
// resizing the pool mid-flight would invalidate outstanding handles.
type CapacityConfig struct {
	MaxAllocs uint32 `json:"maxAllocs"`
}

// LoadCapacityConfig reads and parses a CapacityConfig from path.
func LoadCapacityConfig(path string) (CapacityConfig, error) {
	var cfg CapacityConfig

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("watch: read capacity config %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("watch: parse capacity config %s: %w", path, err)
	}

	if cfg.MaxAllocs == 0 {
		return cfg, fmt.Errorf("watch: capacity config %s: maxAllocs must be > 0", path)
	}

	return cfg, nil
}

// WatchCapacityConfig watches path for writes and sends each successfully
// re-parsed CapacityConfig on the returned channel. Read and parse errors
// are dropped silently rather than closing the channel, so a momentarily-truncated write (editors often write in two
// syscalls) does not kill the watch.
func WatchCapacityConfig(ctx context.Context, w Watcher, path string) (<-chan CapacityConfig, error) {
	if err := w.Add(path); err != nil {
		return nil, fmt.Errorf("watch: add %s: %w", path, err)
	}

	out := make(chan CapacityConfig, 1)

	go func() {
		defer close(out)

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events():
				if !ok {
					return
				}

				if ev.Op&(OpWrite|OpCreate) == 0 {
					continue
				}

				cfg, err := LoadCapacityConfig(path)
				if err != nil {
					continue
				}

				select {
				case out <- cfg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
