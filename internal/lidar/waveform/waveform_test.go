package waveform

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

func writeFile(t *testing.T, recs []*Record) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, r := range recs {
		require.NoError(t, w.Write(r))
	}
	require.NoError(t, w.Flush())
	assert.Equal(t, len(recs), w.Records())
	return buf.Bytes()
}

func openFixture(t *testing.T, recs []*Record) *Reader {
	t.Helper()
	fsys := fsutil.NewMemoryFileSystem()
	fsys.WriteFile("scan.wfm", writeFile(t, recs))
	r, err := Open(fsys, "scan.wfm")
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestReader_SequentialRead(t *testing.T) {
	recs := Synthetic(SyntheticConfig{Records: 25, Channels: 3, Seed: 4})
	r := openFixture(t, recs)

	assert.Equal(t, 25, r.NumRecords())
	assert.Equal(t, 0, r.Tell())

	var got []*Record
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, rec)
	}
	assert.Equal(t, 25, r.Tell())
	if diff := cmp.Diff(recs, got); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestReader_Seek(t *testing.T) {
	recs := Synthetic(SyntheticConfig{Records: 10, Seed: 8})
	r := openFixture(t, recs)

	require.NoError(t, r.Seek(7))
	assert.Equal(t, 7, r.Tell())
	rec, err := r.Read()
	require.NoError(t, err)
	if diff := cmp.Diff(recs[7], rec); diff != "" {
		t.Errorf("record 7 mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, r.Seek(2))
	rec, err = r.Read()
	require.NoError(t, err)
	assert.Equal(t, recs[2].TimeSorg, rec.TimeSorg)

	require.NoError(t, r.Seek(50))
	assert.Equal(t, 10, r.Tell())
	_, err = r.Read()
	assert.ErrorIs(t, err, io.EOF)

	assert.Error(t, r.Seek(-1))
}

func TestReader_EmptyFile(t *testing.T) {
	r := openFixture(t, nil)
	assert.Equal(t, 0, r.NumRecords())
	_, err := r.Read()
	assert.ErrorIs(t, err, io.EOF)
}

func TestOpen_Malformed(t *testing.T) {
	valid := writeFile(t, Synthetic(SyntheticConfig{Records: 3, Seed: 1}))

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", []byte("XXXX\x01\x00\x00\x00")},
		{"bad version", []byte("WFMR\x02\x00\x00\x00")},
		{"truncated record", valid[:len(valid)-5]},
		{"truncated fixed part", valid[:headerSize+10]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := fsutil.NewMemoryFileSystem()
			fsys.WriteFile("bad.wfm", tt.data)
			_, err := Open(fsys, "bad.wfm")
			assert.ErrorIs(t, err, ErrFormat)
		})
	}
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(fsutil.NewMemoryFileSystem(), "nope.wfm")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrFormat)
}

func TestReader_Closed(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	fsys.WriteFile("scan.wfm", writeFile(t, Synthetic(SyntheticConfig{Records: 2})))
	r, err := Open(fsys, "scan.wfm")
	require.NoError(t, err)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	_, err = r.Read()
	assert.Error(t, err)
	assert.Error(t, r.Seek(0))
}

func TestWriter_Limits(t *testing.T) {
	w := NewWriter(io.Discard)
	err := w.Write(&Record{Blocks: make([]SampleBlock, MaxBlocksPerRecord+1)})
	assert.Error(t, err)
	err = w.Write(&Record{Blocks: []SampleBlock{{Samples: make([]uint16, MaxSamplesPerBlock+1)}}})
	assert.Error(t, err)
	assert.Equal(t, 0, w.Records())
}

func TestSynthetic(t *testing.T) {
	cfg := SyntheticConfig{Records: 40, Channels: 2, SamplesPerBlock: 16, Seed: 3}
	recs := Synthetic(cfg)
	require.Len(t, recs, 40)

	for i, r := range recs {
		assert.Equal(t, 1, r.CountChannel(0), "record %d", i)
		assert.LessOrEqual(t, r.CountChannel(1), 2)
		for _, b := range r.Blocks {
			assert.Len(t, b.Samples, 16)
		}
	}
	if diff := cmp.Diff(recs, Synthetic(cfg)); diff != "" {
		t.Errorf("synthetic output not deterministic:\n%s", diff)
	}
}
