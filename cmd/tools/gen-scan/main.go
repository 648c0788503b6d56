// Command gen-scan writes synthetic scan fixtures: a decoded-unit stream,
// the same units as a pcap capture, and a matching waveform file.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/scanfile/internal/lidar/decode"
	"github.com/banshee-data/scanfile/internal/lidar/waveform"
)

func main() {
	out := flag.String("out", "scan.rxdu", "decoded-unit stream output path (empty to skip)")
	pcapOut := flag.String("pcap", "", "pcap capture output path (empty to skip)")
	waveOut := flag.String("wave", "", "waveform output path (empty to skip)")
	lines := flag.Int("lines", 20, "number of scan lines")
	shots := flag.Int("shots", 500, "shots per scan line")
	echoes := flag.Int("echoes", 4, "maximum echoes per shot")
	unitEvents := flag.Int("unit-events", 16, "events per decoded unit")
	seed := flag.Int64("seed", 1, "random seed")
	port := flag.Int("port", decode.DefaultUDPPort, "UDP port for pcap output")
	flag.Parse()

	units := decode.Synthetic(decode.SyntheticConfig{
		Lines:         *lines,
		ShotsPerLine:  *shots,
		MaxEchoes:     *echoes,
		EventsPerUnit: *unitEvents,
		Seed:          *seed,
	})
	nShots, nEchoes := decode.CountEvents(units)
	log.Printf("generated %d units: %d shots, %d echoes", len(units), nShots, nEchoes)

	if *out != "" {
		if err := writeStream(*out, units); err != nil {
			log.Fatalf("stream: %v", err)
		}
		log.Printf("✓ Created: %s", *out)
	}
	if *pcapOut != "" {
		if err := writeCapture(*pcapOut, units, *port); err != nil {
			log.Fatalf("pcap: %v", err)
		}
		log.Printf("✓ Created: %s", *pcapOut)
	}
	if *waveOut != "" {
		recs := waveform.Synthetic(waveform.SyntheticConfig{Records: nShots, Seed: *seed})
		if err := writeWaveforms(*waveOut, recs); err != nil {
			log.Fatalf("waveform: %v", err)
		}
		log.Printf("✓ Created: %s (%d records)", *waveOut, len(recs))
	}
}

func writeStream(path string, units []decode.Unit) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := decode.NewEncoder(f)
	for i, u := range units {
		if err := enc.Encode(u); err != nil {
			f.Close()
			return fmt.Errorf("unit %d: %w", i, err)
		}
	}
	if err := enc.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeCapture(path string, units []decode.Unit, port int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w, err := decode.NewPCAPWriter(f, port)
	if err != nil {
		f.Close()
		return err
	}
	for i, u := range units {
		if err := w.WriteUnit(u); err != nil {
			f.Close()
			return fmt.Errorf("unit %d: %w", i, err)
		}
	}
	return f.Close()
}

func writeWaveforms(path string, recs []*waveform.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := waveform.NewWriter(f)
	for i, r := range recs {
		if err := w.Write(r); err != nil {
			f.Close()
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
