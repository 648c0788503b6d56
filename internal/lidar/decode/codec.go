package decode

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// FileExtension is the extension for decoded-unit stream files.
const FileExtension = ".rxdu"

// Stream framing constants. A stream is a fixed header followed by
// length-prefixed units:
//
//	header: magic "RXDU" | version u16 | reserved u16
//	unit:   length u32 | event count u32 | events...
//	event:  kind u8 | payload (shot 56 bytes, echo 54 bytes, line start 0)
//
// All integers and floats are little-endian.
const (
	StreamMagic   = "RXDU"
	StreamVersion = 1
	HeaderSize    = 8

	ShotPayloadSize = 7 * 8
	EchoPayloadSize = 2 + 8 + 4 + 4 + 8 + 4 + 3*8

	// MaxUnitSize bounds a single unit so a corrupt length prefix cannot
	// trigger a huge allocation.
	MaxUnitSize = 16 << 20
)

// FormatError reports malformed or truncated decoded-unit data.
type FormatError struct {
	Offset int64 // byte offset of the unit or header that failed
	Msg    string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode: offset %d: %s: %v", e.Offset, e.Msg, e.Err)
	}
	return fmt.Sprintf("decode: offset %d: %s", e.Offset, e.Msg)
}

func (e *FormatError) Unwrap() error { return e.Err }

// MarshalUnit encodes u as a unit body (event count + events) without the
// length prefix. Capture replay carries exactly this body in each UDP payload.
func MarshalUnit(u Unit) ([]byte, error) {
	size := 4
	for _, ev := range u {
		size++
		switch ev.Kind {
		case KindShot:
			size += ShotPayloadSize
		case KindEcho:
			size += EchoPayloadSize
		case KindLineStartUp, KindLineStartDown:
		default:
			return nil, fmt.Errorf("marshal unit: unknown event kind %v", ev.Kind)
		}
	}

	buf := make([]byte, 0, size)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(u)))
	for _, ev := range u {
		buf = append(buf, byte(ev.Kind))
		switch ev.Kind {
		case KindShot:
			buf = appendFloat64(buf, ev.Shot.TimeSorg)
			buf = appendVec(buf, ev.Shot.Direction)
			buf = appendVec(buf, ev.Shot.Origin)
		case KindEcho:
			e := ev.Echo
			buf = binary.LittleEndian.AppendUint16(buf, e.ReturnIndex)
			buf = appendFloat64(buf, e.Time)
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(e.Amplitude))
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(e.Deviation))
			buf = appendFloat64(buf, e.Range)
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(e.Reflectance))
			buf = appendVec(buf, e.Vertex)
		}
	}
	return buf, nil
}

// UnmarshalUnit decodes a unit body produced by MarshalUnit.
func UnmarshalUnit(data []byte) (Unit, error) {
	if len(data) < 4 {
		return nil, &FormatError{Msg: fmt.Sprintf("unit body too short: %d bytes", len(data))}
	}
	count := binary.LittleEndian.Uint32(data[0:4])
	// Every event takes at least one byte, which bounds count before allocating.
	if int64(count) > int64(len(data)-4) {
		return nil, &FormatError{Msg: fmt.Sprintf("event count %d exceeds unit body of %d bytes", count, len(data))}
	}

	u := make(Unit, 0, count)
	off := 4
	for i := uint32(0); i < count; i++ {
		if off >= len(data) {
			return nil, &FormatError{Offset: int64(off), Msg: fmt.Sprintf("unit truncated at event %d", i)}
		}
		kind := EventKind(data[off])
		off++
		switch kind {
		case KindShot:
			if off+ShotPayloadSize > len(data) {
				return nil, &FormatError{Offset: int64(off), Msg: "shot payload truncated"}
			}
			p := data[off : off+ShotPayloadSize]
			u = append(u, ShotEvent(Shot{
				TimeSorg:  readFloat64(p[0:]),
				Direction: readVec(p[8:]),
				Origin:    readVec(p[32:]),
			}))
			off += ShotPayloadSize
		case KindEcho:
			if off+EchoPayloadSize > len(data) {
				return nil, &FormatError{Offset: int64(off), Msg: "echo payload truncated"}
			}
			p := data[off : off+EchoPayloadSize]
			u = append(u, EchoEvent(Echo{
				ReturnIndex: binary.LittleEndian.Uint16(p[0:2]),
				Time:        readFloat64(p[2:]),
				Amplitude:   math.Float32frombits(binary.LittleEndian.Uint32(p[10:14])),
				Deviation:   math.Float32frombits(binary.LittleEndian.Uint32(p[14:18])),
				Range:       readFloat64(p[18:]),
				Reflectance: math.Float32frombits(binary.LittleEndian.Uint32(p[26:30])),
				Vertex:      readVec(p[30:]),
			}))
			off += EchoPayloadSize
		case KindLineStartUp, KindLineStartDown:
			u = append(u, Event{Kind: kind})
		default:
			return nil, &FormatError{Offset: int64(off - 1), Msg: fmt.Sprintf("unknown event kind 0x%02x", uint8(kind))}
		}
	}
	if off != len(data) {
		return nil, &FormatError{Offset: int64(off), Msg: fmt.Sprintf("%d trailing bytes after %d events", len(data)-off, count)}
	}
	return u, nil
}

// Encoder writes a decoded-unit stream.
type Encoder struct {
	w           io.Writer
	wroteHeader bool
	units       int
}

// NewEncoder returns an Encoder writing to w. The stream header is written
// before the first unit.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

func (e *Encoder) writeHeader() error {
	hdr := make([]byte, HeaderSize)
	copy(hdr, StreamMagic)
	binary.LittleEndian.PutUint16(hdr[4:6], StreamVersion)
	if _, err := e.w.Write(hdr); err != nil {
		return fmt.Errorf("failed to write stream header: %w", err)
	}
	e.wroteHeader = true
	return nil
}

// Encode appends one unit to the stream.
func (e *Encoder) Encode(u Unit) error {
	if !e.wroteHeader {
		if err := e.writeHeader(); err != nil {
			return err
		}
	}
	body, err := MarshalUnit(u)
	if err != nil {
		return err
	}
	if len(body) > MaxUnitSize {
		return fmt.Errorf("unit of %d bytes exceeds maximum %d", len(body), MaxUnitSize)
	}

	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(body)))
	if _, err := e.w.Write(lenBuf); err != nil {
		return fmt.Errorf("failed to write unit length: %w", err)
	}
	if _, err := e.w.Write(body); err != nil {
		return fmt.Errorf("failed to write unit data: %w", err)
	}
	e.units++
	return nil
}

// Flush writes the header of an empty stream. It is a no-op once any unit
// has been encoded.
func (e *Encoder) Flush() error {
	if e.wroteHeader {
		return nil
	}
	return e.writeHeader()
}

// Units returns the number of units encoded so far.
func (e *Encoder) Units() int { return e.units }

// Decoder reads a decoded-unit stream sequentially.
type Decoder struct {
	br     *bufio.Reader
	offset int64
}

// NewDecoder returns a Decoder reading from r. Call ReadHeader before Next.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{br: bufio.NewReaderSize(r, 64<<10)}
}

// Reset discards buffered input and reads from r as a new stream.
func (d *Decoder) Reset(r io.Reader) {
	d.br.Reset(r)
	d.offset = 0
}

// ReadHeader consumes and validates the stream header.
func (d *Decoder) ReadHeader() error {
	hdr := make([]byte, HeaderSize)
	if _, err := io.ReadFull(d.br, hdr); err != nil {
		return &FormatError{Offset: d.offset, Msg: "failed to read stream header", Err: err}
	}
	if string(hdr[0:4]) != StreamMagic {
		return &FormatError{Offset: d.offset, Msg: fmt.Sprintf("bad magic %q, expected %q", hdr[0:4], StreamMagic)}
	}
	if v := binary.LittleEndian.Uint16(hdr[4:6]); v != StreamVersion {
		return &FormatError{Offset: d.offset, Msg: fmt.Sprintf("unsupported stream version %d", v)}
	}
	d.offset += HeaderSize
	return nil
}

// More reports whether another unit may follow. A read error other than
// io.EOF reports true so that Next surfaces it.
func (d *Decoder) More() bool {
	_, err := d.br.Peek(1)
	return !errors.Is(err, io.EOF)
}

// Next reads the next unit. It returns io.EOF at a clean end of stream.
func (d *Decoder) Next() (Unit, error) {
	start := d.offset
	lenBuf := make([]byte, 4)
	n, err := io.ReadFull(d.br, lenBuf)
	if err != nil {
		if errors.Is(err, io.EOF) && n == 0 {
			return nil, io.EOF
		}
		return nil, &FormatError{Offset: start, Msg: "truncated unit length", Err: err}
	}
	size := binary.LittleEndian.Uint32(lenBuf)
	if size > MaxUnitSize {
		return nil, &FormatError{Offset: start, Msg: fmt.Sprintf("unit length %d exceeds maximum %d", size, MaxUnitSize)}
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(d.br, body); err != nil {
		return nil, &FormatError{Offset: start, Msg: fmt.Sprintf("truncated unit body (want %d bytes)", size), Err: err}
	}
	d.offset += 4 + int64(size)

	u, err := UnmarshalUnit(body)
	if err != nil {
		var fe *FormatError
		if errors.As(err, &fe) {
			fe.Offset += start + 4
		}
		return nil, err
	}
	return u, nil
}

// Offset returns the byte offset of the next unit.
func (d *Decoder) Offset() int64 { return d.offset }

func appendFloat64(b []byte, v float64) []byte {
	return binary.LittleEndian.AppendUint64(b, math.Float64bits(v))
}

func appendVec(b []byte, v r3.Vec) []byte {
	b = appendFloat64(b, v.X)
	b = appendFloat64(b, v.Y)
	return appendFloat64(b, v.Z)
}

func readFloat64(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b[0:8]))
}

func readVec(b []byte) r3.Vec {
	return r3.Vec{X: readFloat64(b[0:]), Y: readFloat64(b[8:]), Z: readFloat64(b[16:])}
}
