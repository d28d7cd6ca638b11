package topology

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dd0wney/cluso-fleetguard/pkg/logging"
)

// DefaultDebounce is how long the file must stay quiet before it is reloaded.
const DefaultDebounce = 200 * time.Millisecond

// FileProvider serves snapshots loaded from a topology file and, once
// Watch is called, reloads the file when it changes on disk.
//
// A reload that fails validation keeps the previous snapshot and is logged.
type FileProvider struct {
	path     string
	debounce time.Duration
	logger   logging.Logger

	current atomic.Pointer[Topology]
	lastErr atomic.Pointer[error]
	changes chan struct{}

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
}

// FileProviderOption configures a FileProvider.
type FileProviderOption func(*FileProvider)

// WithDebounce sets the quiet period before a reload.
func WithDebounce(d time.Duration) FileProviderOption {
	return func(p *FileProvider) {
		if d > 0 {
			p.debounce = d
		}
	}
}

// WithLogger sets the provider's logger.
func WithLogger(l logging.Logger) FileProviderOption {
	return func(p *FileProvider) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewFileProvider loads path once and returns a provider serving it.
func NewFileProvider(path string, opts ...FileProviderOption) (*FileProvider, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	p := &FileProvider{
		path:     abs,
		debounce: DefaultDebounce,
		logger:   logging.NewNopLogger(),
		changes:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Path returns the absolute path of the watched file.
func (p *FileProvider) Path() string {
	return p.path
}

// Current returns the last snapshot that loaded successfully.
func (p *FileProvider) Current(ctx context.Context) (*Topology, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t := p.current.Load(); t != nil {
		return t, nil
	}
	if errp := p.lastErr.Load(); errp != nil {
		return nil, *errp
	}
	return nil, ErrNoSnapshot
}

// LastError returns the error from the most recent failed reload, if any.
func (p *FileProvider) LastError() error {
	if errp := p.lastErr.Load(); errp != nil {
		return *errp
	}
	return nil
}

// Changes implements Watcher. A signal is sent after each successful reload.
func (p *FileProvider) Changes() <-chan struct{} {
	return p.changes
}

func (p *FileProvider) reload() error {
	t, err := Load(p.path)
	if err != nil {
		p.lastErr.Store(&err)
		return err
	}
	p.lastErr.Store(nil)
	p.current.Store(t)
	return nil
}

// Watch starts watching the file's directory. Editors commonly replace files
// by rename, so the directory is watched and events are filtered by name.
// Watching stops when ctx is cancelled or Close is called.
func (p *FileProvider) Watch(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.watcher != nil {
		return nil
	}
	select {
	case <-p.done:
		return ErrProviderClosed
	default:
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(p.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(p.path), err)
	}
	p.watcher = w

	go p.loop(ctx, w)
	return nil
}

func (p *FileProvider) loop(ctx context.Context, w *fsnotify.Watcher) {
	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			p.Close()
			return
		case <-p.done:
			return
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != p.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(p.debounce)
			} else {
				timer.Reset(p.debounce)
			}
			timerCh = timer.C
		case <-timerCh:
			timerCh = nil
			if err := p.reload(); err != nil {
				p.logger.Warn("topology reload failed, keeping previous snapshot",
					logging.Path(p.path), logging.Error(err))
				continue
			}
			p.logger.Info("topology reloaded", logging.Path(p.path),
				logging.TopologyID(p.current.Load().ID))
			notify(p.changes)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			if !errors.Is(err, fsnotify.ErrEventOverflow) {
				p.logger.Error("topology watcher error", logging.Path(p.path), logging.Error(err))
			}
		}
	}
}

// Close stops watching. It is safe to call more than once.
func (p *FileProvider) Close() error {
	var err error
	p.stopOnce.Do(func() {
		close(p.done)
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.watcher != nil {
			err = p.watcher.Close()
		}
	})
	return err
}
