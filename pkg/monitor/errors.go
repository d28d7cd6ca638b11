package monitor

import "errors"

var (
	// ErrAlreadyRunning is returned by Start on a running monitor.
	ErrAlreadyRunning = errors.New("monitor already running")

	// ErrNilProvider is returned by Start without a topology provider.
	ErrNilProvider = errors.New("monitor requires a topology provider")
)
