// Package scanfile serves windows of pulses and points from a forward-only
// scan stream.
//
// The stream can only be read from the front, but ReadData accepts any
// window [start, end) over the logical pulse sequence. A window that starts
// at the current stream position continues reading. One that starts ahead
// discards the pulses in between. One that starts behind rewinds the
// stream and replays it from the first pulse.
package scanfile

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/scanfile/internal/config"
	"github.com/banshee-data/scanfile/internal/lidar/decode"
	"github.com/banshee-data/scanfile/internal/lidar/scan"
	"github.com/banshee-data/scanfile/internal/lidar/waveform"
	"github.com/banshee-data/scanfile/internal/monitoring"
	"github.com/banshee-data/scanfile/internal/timeutil"
)

// Window is the result of one read. Pulses[i].PointStartIdx indexes Points.
type Window struct {
	Pulses []scan.Pulse
	Points []scan.Point
}

// Len returns the number of pulses in the window.
func (w *Window) Len() int {
	if w == nil {
		return 0
	}
	return len(w.Pulses)
}

// PointsOf returns the points linked to pulse i.
func (w *Window) PointsOf(i int) []scan.Point {
	if w == nil || i < 0 || i >= len(w.Pulses) {
		return nil
	}
	p := w.Pulses[i]
	if p.PointCount == 0 {
		return nil
	}
	return w.Points[p.PointStartIdx : p.PointStartIdx+uint32(p.PointCount)]
}

// ScanFile is an open scan stream with an optional waveform file.
// Methods serialise on an internal mutex; a ScanFile is meant to be driven
// by one caller.
type ScanFile struct {
	mu sync.Mutex

	id       string
	primary  string
	waveName string

	src  decode.Source
	wave waveform.Source
	ex   *scan.Extractor

	cfg      *config.ReaderConfig
	clock    timeutil.Clock
	observer ReadObserver

	finished bool
	broken   error
	closed   bool
	stats    ReadStats
}

// Open opens the primary scan stream and, when wave is not empty, its
// waveform file. Files ending in .pcap are replayed as network captures;
// anything else is read as a decoded-unit stream.
func Open(primary, wave string, opts ...Option) (*ScanFile, error) {
	o := buildOptions(opts)

	var src decode.Source
	if strings.EqualFold(filepath.Ext(primary), ".pcap") {
		s, err := decode.OpenPCAP(o.fsys, primary, o.cfg.GetPCAPUDPPort())
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrSourceOpen, primary, err)
		}
		src = s
	} else {
		s, err := decode.OpenStream(o.fsys, primary)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrSourceOpen, primary, err)
		}
		src = s
	}

	var wsrc waveform.Source
	if wave != "" {
		w, err := waveform.Open(o.fsys, wave)
		if err != nil {
			src.Close()
			return nil, fmt.Errorf("%w: %s: %w", ErrSourceOpen, wave, err)
		}
		monitoring.Logf("scanfile: %s has %d waveform records", wave, w.NumRecords())
		wsrc = w
	}

	sf := newScanFile(src, wsrc, o)
	sf.primary = primary
	sf.waveName = wave
	monitoring.Logf("scanfile %s: opened %s", sf.id, primary)
	return sf, nil
}

// OpenSource wraps already opened sources. wave may be nil.
func OpenSource(src decode.Source, wave waveform.Source, opts ...Option) (*ScanFile, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil event source", ErrSourceOpen)
	}
	return newScanFile(src, wave, buildOptions(opts)), nil
}

func newScanFile(src decode.Source, wave waveform.Source, o options) *ScanFile {
	if o.cfg.GetDebug() {
		monitoring.SetDebug(true)
	}
	return &ScanFile{
		id:       uuid.New().String(),
		src:      src,
		wave:     wave,
		ex:       scan.NewExtractor(o.cfg.GetInitialCapacity(), o.cfg.GetGrowBy()),
		cfg:      o.cfg,
		clock:    o.clock,
		observer: o.observer,
	}
}

// ID returns the handle's unique identifier, used to correlate log lines.
func (f *ScanFile) ID() string { return f.id }

// Finished reports whether the last read exhausted the stream and every
// pulse has been handed out.
func (f *ScanFile) Finished() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finished
}

// PulsesRead returns the number of shots observed on the stream since it
// was opened or last rewound, including skipped ones.
func (f *ScanFile) PulsesRead() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ex == nil {
		return 0
	}
	return f.ex.PulsesReadFile()
}

// Stats returns a snapshot of the read counters.
func (f *ScanFile) Stats() ReadStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

// ReadData returns the pulses with logical indices [start, end) and the
// points they own. A window running past the end of the stream is returned
// short; Finished then reports true.
func (f *ScanFile) ReadData(start, end int) (*Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrClosed
	}
	if f.broken != nil {
		return nil, fmt.Errorf("%w: %v", ErrStreamBroken, f.broken)
	}
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: [%d, %d)", ErrInvalidWindow, start, end)
	}
	if start == end {
		return &Window{}, nil
	}

	began := f.clock.Now()
	action := f.position(start)
	if action == ActionReplay {
		if err := f.src.Rewind(); err != nil {
			f.broken = err
			return nil, fmt.Errorf("%w: rewind: %w", ErrDecode, err)
		}
	}

	want := end - start
	units := 0
	for !f.src.AtEnd() && f.ex.PulsesBuffered() < want+1 {
		u, err := f.src.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			f.broken = err
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		units++
		if err := decode.Dispatch(u, f.ex); err != nil {
			f.broken = err
			if errors.Is(err, scan.ErrPointBeforePulse) {
				return nil, fmt.Errorf("reading pulses [%d, %d): %w", start, end, err)
			}
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}
	}

	pulses, points := f.ex.Take(want)
	win := &Window{Pulses: pulses.Records(), Points: points.Records()}
	f.finished = f.src.AtEnd() && f.ex.PulsesBuffered() == 0

	f.stats.Reads++
	f.stats.UnitsRead += units
	f.stats.PulsesReturned += len(win.Pulses)
	f.stats.PointsReturned += len(win.Points)

	monitoring.Debugf("scanfile %s: read [%d, %d) %s: %d pulses, %d points, %d units, finished=%v",
		f.id, start, end, action, len(win.Pulses), len(win.Points), units, f.finished)

	if f.observer != nil {
		f.observer.ObserveRead(ReadEvent{
			HandleID:  f.id,
			Start:     start,
			End:       end,
			Action:    action,
			Pulses:    len(win.Pulses),
			Points:    len(win.Points),
			Units:     units,
			Observed:  f.ex.PulsesReadFile(),
			Finished:  f.finished,
			StartedAt: began,
			Duration:  f.clock.Since(began),
		})
	}
	return win, nil
}

// position reconciles the extractor with a window starting at start. The
// caller rewinds the source when it returns ActionReplay.
func (f *ScanFile) position(start int) Action {
	consumed := f.ex.PulsesConsumed()
	switch {
	case start < consumed:
		monitoring.Logf("scanfile %s: window start %d is behind stream position %d, replaying from the beginning",
			f.id, start, consumed)
		f.ex.Reset()
		f.ex.SetPulsesToIgnore(start)
		f.finished = false
		f.stats.Replays++
		return ActionReplay

	case start > consumed:
		stale := min(start-consumed, f.ex.PulsesBuffered())
		dropped := f.ex.RemoveLowerPulses(stale)
		ignore := max(0, start-f.ex.PulsesReadFile())
		f.ex.SetPulsesToIgnore(ignore)
		monitoring.Logf("scanfile %s: window start %d is ahead of stream position %d, discarding %d buffered pulses (%d points) and skipping %d more",
			f.id, start, consumed, stale, dropped, ignore)
		f.stats.Skips++
		return ActionSkip

	default:
		return ActionContinue
	}
}

// WaveformSummary describes the waveform records enumerated by
// ReadWaveforms.
type WaveformSummary struct {
	Start            int
	End              int // one past the last record read
	Records          int
	Samples          int
	BlocksPerChannel map[uint16]int
}

// Channel1Blocks returns the number of sample blocks on channel 1.
func (s *WaveformSummary) Channel1Blocks() int {
	return s.BlocksPerChannel[1]
}

// ReadWaveforms enumerates waveform records [start, end), clamped to the
// records the file holds, and counts their sample blocks per channel. The
// records are not linked to pulses.
func (f *ScanFile) ReadWaveforms(start, end int) (*WaveformSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrClosed
	}
	if f.wave == nil {
		return nil, ErrNoWaveforms
	}
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: [%d, %d)", ErrInvalidWindow, start, end)
	}
	end = min(end, f.wave.NumRecords())
	start = min(start, end)

	sum := &WaveformSummary{Start: start, End: start, BlocksPerChannel: make(map[uint16]int)}
	if err := f.wave.Seek(start); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	for i := start; i < end; i++ {
		rec, err := f.wave.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: waveform record %d: %w", ErrDecode, i, err)
		}
		for _, b := range rec.Blocks {
			sum.BlocksPerChannel[b.Channel]++
			sum.Samples += len(b.Samples)
		}
		sum.Records++
		sum.End = i + 1
	}
	monitoring.Logf("scanfile %s: %d waveform records, %d channel 1 blocks", f.id, sum.Records, sum.Channel1Blocks())
	return sum, nil
}

// Close releases both sources and the buffered records. Closing twice is a
// no-op.
func (f *ScanFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true

	var errs []error
	if err := f.src.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing %s: %w", f.primary, err))
	}
	if f.wave != nil {
		if err := f.wave.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", f.waveName, err))
		}
	}
	f.ex.Reset()
	monitoring.Debugf("scanfile %s: closed after %d reads", f.id, f.stats.Reads)
	return errors.Join(errs...)
}
