package scanfile

import (
	"github.com/banshee-data/scanfile/internal/config"
	"github.com/banshee-data/scanfile/internal/fsutil"
	"github.com/banshee-data/scanfile/internal/timeutil"
)

type options struct {
	cfg      *config.ReaderConfig
	fsys     fsutil.FileSystem
	clock    timeutil.Clock
	observer ReadObserver
}

// Option configures a ScanFile.
type Option func(*options)

// WithConfig sets buffer sizing and source settings. A nil config uses the
// defaults.
func WithConfig(cfg *config.ReaderConfig) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithFileSystem sets the filesystem Open reads from.
func WithFileSystem(fsys fsutil.FileSystem) Option {
	return func(o *options) { o.fsys = fsys }
}

// WithClock sets the clock used to time reads.
func WithClock(c timeutil.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithObserver registers an observer for completed reads.
func WithObserver(obs ReadObserver) Option {
	return func(o *options) { o.observer = obs }
}

func buildOptions(opts []Option) options {
	o := options{
		fsys:  fsutil.OSFileSystem{},
		clock: timeutil.RealClock{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cfg == nil {
		o.cfg = config.EmptyReaderConfig()
	}
	if o.fsys == nil {
		o.fsys = fsutil.OSFileSystem{}
	}
	if o.clock == nil {
		o.clock = timeutil.RealClock{}
	}
	return o
}
