package decode

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/scanfile/internal/fsutil"
)

func writeCapture(t *testing.T, units []Unit, port int) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewPCAPWriter(&buf, port)
	require.NoError(t, err)
	for _, u := range units {
		require.NoError(t, w.WriteUnit(u))
	}
	assert.Equal(t, len(units), w.Packets())
	return buf.Bytes()
}

func TestPCAPSource_RoundTrip(t *testing.T) {
	units := Synthetic(SyntheticConfig{Lines: 2, ShotsPerLine: 30, MaxEchoes: 3, Seed: 11})
	fsys := fsutil.NewMemoryFileSystem()
	fsys.WriteFile("scan.pcap", writeCapture(t, units, DefaultUDPPort))

	src, err := OpenPCAP(fsys, "scan.pcap", DefaultUDPPort)
	require.NoError(t, err)
	defer src.Close()

	got := drain(t, src)
	if diff := cmp.Diff(units, got); diff != "" {
		t.Fatalf("capture mismatch (-want +got):\n%s", diff)
	}
	_, err = src.Next()
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, src.Rewind())
	assert.Equal(t, 2, fsys.OpenCount("scan.pcap"))
	replay := drain(t, src)
	if diff := cmp.Diff(units, replay); diff != "" {
		t.Fatalf("replay mismatch (-want +got):\n%s", diff)
	}
}

func TestPCAPSource_FiltersPort(t *testing.T) {
	units := []Unit{sampleUnit(), {ShotEvent(Shot{TimeSorg: 2})}, {ShotEvent(Shot{TimeSorg: 3})}}

	var buf bytes.Buffer
	w, err := NewPCAPWriter(&buf, DefaultUDPPort)
	require.NoError(t, err)
	require.NoError(t, w.WriteUnit(units[0]))
	w.udpPort = 9999
	require.NoError(t, w.WriteUnit(units[1]))
	w.udpPort = DefaultUDPPort
	require.NoError(t, w.WriteUnit(units[2]))

	fsys := fsutil.NewMemoryFileSystem()
	fsys.WriteFile("mixed.pcap", buf.Bytes())
	src, err := OpenPCAP(fsys, "mixed.pcap", DefaultUDPPort)
	require.NoError(t, err)
	defer src.Close()

	got := drain(t, src)
	if diff := cmp.Diff([]Unit{units[0], units[2]}, got); diff != "" {
		t.Fatalf("filtered mismatch (-want +got):\n%s", diff)
	}
}

func TestPCAPSource_CorruptPayload(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewPCAPWriter(&buf, DefaultUDPPort)
	require.NoError(t, err)
	require.NoError(t, w.WriteUnit(sampleUnit()))

	// Flip the event count of the only payload so it no longer parses.
	data := buf.Bytes()
	payloadAt := 24 + 16 + 14 + 20 + 8
	data[payloadAt] = 0x7f

	fsys := fsutil.NewMemoryFileSystem()
	fsys.WriteFile("bad.pcap", data)
	src, err := OpenPCAP(fsys, "bad.pcap", DefaultUDPPort)
	require.NoError(t, err)
	defer src.Close()

	assert.False(t, src.AtEnd())
	_, err = src.Next()
	var fe *FormatError
	require.True(t, errors.As(err, &fe), "want *FormatError, got %v", err)
	assert.Contains(t, fe.Msg, "packet 1")
}

func TestOpenPCAP_Errors(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	fsys.WriteFile("junk.pcap", []byte("definitely not a capture file"))

	_, err := OpenPCAP(fsys, "missing.pcap", DefaultUDPPort)
	assert.Error(t, err)

	_, err = OpenPCAP(fsys, "junk.pcap", DefaultUDPPort)
	var fe *FormatError
	assert.True(t, errors.As(err, &fe))

	_, err = OpenPCAP(fsys, "junk.pcap", 0)
	assert.Error(t, err)
}

func TestPCAPWriter_RejectsOversizedUnit(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewPCAPWriter(&buf, DefaultUDPPort)
	require.NoError(t, err)

	big := make(Unit, MaxUDPPayload/EchoPayloadSize+1)
	for i := range big {
		big[i] = EchoEvent(Echo{ReturnIndex: 1})
	}
	assert.Error(t, w.WriteUnit(big))
	assert.Equal(t, 0, w.Packets())

	_, err = NewPCAPWriter(&buf, 70000)
	assert.Error(t, err)
}

func TestPCAPSource_Closed(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	fsys.WriteFile("scan.pcap", writeCapture(t, []Unit{sampleUnit()}, DefaultUDPPort))
	src, err := OpenPCAP(fsys, "scan.pcap", DefaultUDPPort)
	require.NoError(t, err)

	require.NoError(t, src.Close())
	require.NoError(t, src.Close())
	assert.True(t, src.AtEnd())
	_, err = src.Next()
	assert.ErrorIs(t, err, ErrSourceClosed)
	assert.ErrorIs(t, src.Rewind(), ErrSourceClosed)
}
