package capture

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Factory creates a capture source for one backend. Construction may fail
// when the backend's native library is unavailable on this host.
type Factory func() (Source, error)

var (
	registryMu sync.Mutex
	factories  []Factory

	// remembered across Auto calls so repeated acquisitions skip the probe
	lastWorking Factory
)

// Register adds a backend factory. Backends register themselves from init
// in preference order via their package being imported.
func Register(f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories = append(factories, f)
}

// Auto probes the registered backends in order and returns the first one
// whose Ping succeeds. The last working factory is remembered and retried
// first on subsequent calls.
func Auto(ctx context.Context, log zerolog.Logger) (Source, error) {
	registryMu.Lock()
	remembered := lastWorking
	candidates := make([]Factory, len(factories))
	copy(candidates, factories)
	registryMu.Unlock()

	if remembered != nil {
		if src, err := tryFactory(ctx, remembered); err == nil {
			return src, nil
		}
	}

	var lastErr error
	for _, f := range candidates {
		src, err := tryFactory(ctx, f)
		if err != nil {
			log.Debug().Err(err).Msg("capture backend probe failed")
			lastErr = err
			continue
		}

		registryMu.Lock()
		lastWorking = f
		registryMu.Unlock()

		log.Debug().Str("backend", src.Name()).Msg("capture backend selected")
		return src, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no capture backends registered")
	}
	return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, lastErr)
}

func tryFactory(ctx context.Context, f Factory) (Source, error) {
	src, err := f()
	if err != nil {
		return nil, err
	}
	if err := src.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", src.Name(), err)
	}
	return src, nil
}
