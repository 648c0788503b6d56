package scanfile

import "errors"

var (
	// ErrSourceOpen is returned when the primary or waveform source cannot
	// be opened or its header cannot be decoded.
	ErrSourceOpen = errors.New("scanfile: cannot open source")

	// ErrDecode wraps failures reported by the event or waveform source.
	ErrDecode = errors.New("scanfile: decode error")

	// ErrStreamBroken is returned by reads after a decode or protocol error
	// has left the stream in an unknown state. Reopen the file to continue.
	ErrStreamBroken = errors.New("scanfile: stream broken by earlier error")

	// ErrInvalidWindow is returned for negative or reversed windows.
	ErrInvalidWindow = errors.New("scanfile: invalid window")

	// ErrClosed is returned by reads after Close.
	ErrClosed = errors.New("scanfile: closed")

	// ErrNoWaveforms is returned by ReadWaveforms when no waveform file
	// was opened.
	ErrNoWaveforms = errors.New("scanfile: no waveform file")
)
