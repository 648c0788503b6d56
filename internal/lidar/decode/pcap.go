package decode

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/banshee-data/scanfile/internal/fsutil"
	"github.com/banshee-data/scanfile/internal/monitoring"
)

// DefaultUDPPort is the port scanners stream decoded units on.
const DefaultUDPPort = 20002

// MaxUDPPayload is the largest payload that fits in one IPv4 UDP datagram.
const MaxUDPPayload = 65507

const snapLen = 262144

// PCAPSource replays decoded units carried one per UDP payload in a classic
// pcap capture. Packets not addressed to the configured port are skipped.
type PCAPSource struct {
	mu      sync.Mutex
	fsys    fsutil.FileSystem
	name    string
	udpPort uint16

	file   fsutil.File
	reader *pcapgo.Reader

	pending  Unit
	havePend bool
	eof      bool
	readErr  error

	packets int // packets read since the last rewind
	skipped int // packets filtered out since the last rewind
	closed  bool
}

// OpenPCAP opens a capture file and positions it at the first unit.
func OpenPCAP(fsys fsutil.FileSystem, name string, udpPort int) (*PCAPSource, error) {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	if udpPort <= 0 || udpPort > 65535 {
		return nil, fmt.Errorf("invalid UDP port %d", udpPort)
	}
	s := &PCAPSource{fsys: fsys, name: name, udpPort: uint16(udpPort)}
	if err := s.open(); err != nil {
		return nil, err
	}
	monitoring.Logf("PCAP source %s opened (udp port %d, link type %v)", name, udpPort, s.reader.LinkType())
	return s, nil
}

func (s *PCAPSource) open() error {
	f, err := s.fsys.Open(s.name)
	if err != nil {
		return fmt.Errorf("failed to open PCAP file %s: %w", s.name, err)
	}
	r, err := pcapgo.NewReader(f)
	if err != nil {
		f.Close()
		return &FormatError{Msg: fmt.Sprintf("invalid PCAP file %s", s.name), Err: err}
	}
	s.file = f
	s.reader = r
	s.pending = nil
	s.havePend = false
	s.eof = false
	s.readErr = nil
	s.packets = 0
	s.skipped = 0
	return nil
}

// fill reads ahead to the next matching packet. Must hold s.mu.
func (s *PCAPSource) fill() {
	if s.havePend || s.eof || s.readErr != nil {
		return
	}
	for {
		data, _, err := s.reader.ReadPacketData()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.eof = true
				monitoring.Debugf("PCAP %s: end of capture after %d packets (%d skipped)", s.name, s.packets, s.skipped)
				return
			}
			s.readErr = &FormatError{Msg: fmt.Sprintf("failed to read packet %d", s.packets+1), Err: err}
			return
		}
		s.packets++

		packet := gopacket.NewPacket(data, s.reader.LinkType(), gopacket.Default)
		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			s.skipped++
			continue
		}
		udp, ok := udpLayer.(*layers.UDP)
		if !ok || uint16(udp.DstPort) != s.udpPort || len(udp.Payload) == 0 {
			s.skipped++
			continue
		}

		u, err := UnmarshalUnit(udp.Payload)
		if err != nil {
			var fe *FormatError
			if errors.As(err, &fe) {
				fe.Msg = fmt.Sprintf("packet %d: %s", s.packets, fe.Msg)
			}
			s.readErr = err
			return
		}
		s.pending = u
		s.havePend = true
		return
	}
}

// AtEnd reports whether the capture holds no further units. A pending read
// error reports false so that Next can return it.
func (s *PCAPSource) AtEnd() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	s.fill()
	return !s.havePend && s.readErr == nil
}

// Next returns the next unit carried in the capture.
func (s *PCAPSource) Next() (Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSourceClosed
	}
	s.fill()
	if s.readErr != nil {
		return nil, s.readErr
	}
	if !s.havePend {
		return nil, io.EOF
	}
	u := s.pending
	s.pending = nil
	s.havePend = false
	return u, nil
}

// Rewind reopens the capture at its first packet.
func (s *PCAPSource) Rewind() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSourceClosed
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("failed to close PCAP file %s for rewind: %w", s.name, err)
	}
	return s.open()
}

// Close closes the capture file.
func (s *PCAPSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}

// PCAPWriter writes units as UDP datagrams in an Ethernet pcap capture.
type PCAPWriter struct {
	w       *pcapgo.Writer
	udpPort uint16
	ts      time.Time
	step    time.Duration
	packets int
}

// NewPCAPWriter writes the capture file header to w.
func NewPCAPWriter(w io.Writer, udpPort int) (*PCAPWriter, error) {
	if udpPort <= 0 || udpPort > 65535 {
		return nil, fmt.Errorf("invalid UDP port %d", udpPort)
	}
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(snapLen, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("failed to write PCAP header: %w", err)
	}
	return &PCAPWriter{
		w:       pw,
		udpPort: uint16(udpPort),
		ts:      time.Unix(0, 0).UTC(),
		step:    time.Millisecond,
	}, nil
}

// WriteUnit encodes u into one UDP datagram.
func (p *PCAPWriter) WriteUnit(u Unit) error {
	payload, err := MarshalUnit(u)
	if err != nil {
		return err
	}
	if len(payload) > MaxUDPPayload {
		return fmt.Errorf("unit of %d bytes exceeds UDP payload limit %d", len(payload), MaxUDPPayload)
	}

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		DstMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(192, 168, 0, 125).To4(),
		DstIP:    net.IPv4(192, 168, 0, 10).To4(),
	}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(p.udpPort),
		DstPort: layers.UDPPort(p.udpPort),
	}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		return fmt.Errorf("failed to set checksum layer: %w", err)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(payload)); err != nil {
		return fmt.Errorf("failed to serialize packet: %w", err)
	}

	data := buf.Bytes()
	ci := gopacket.CaptureInfo{
		Timestamp:     p.ts.Add(time.Duration(p.packets) * p.step),
		CaptureLength: len(data),
		Length:        len(data),
	}
	if err := p.w.WritePacket(ci, data); err != nil {
		return fmt.Errorf("failed to write packet %d: %w", p.packets+1, err)
	}
	p.packets++
	return nil
}

// Packets returns the number of datagrams written.
func (p *PCAPWriter) Packets() int { return p.packets }
