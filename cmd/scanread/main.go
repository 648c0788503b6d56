// Command scanread reads a scan stream window by window and reports what
// each window holds.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/banshee-data/scanfile/internal/config"
	"github.com/banshee-data/scanfile/internal/lidar/monitor"
	"github.com/banshee-data/scanfile/internal/lidar/scanfile"
	"github.com/banshee-data/scanfile/internal/lidar/storage/sqlite"
	"github.com/banshee-data/scanfile/internal/monitoring"
	"github.com/banshee-data/scanfile/internal/version"
)

var (
	configFile = flag.String("config", "", "Path to reader configuration JSON (defaults apply when empty)")
	waveFile   = flag.String("wave", "", "Waveform file accompanying the scan")
	startPulse = flag.Int("start", 0, "First pulse to read")
	endPulse   = flag.Int("end", 0, "Stop before this pulse (0 reads to the end)")
	windowSize = flag.Int("window", 0, "Pulses per read (0 uses window_pulses from the config)")
	dbFile     = flag.String("db", "", "SQLite read log to record each read in")
	plotDir    = flag.String("plot-dir", "", "Write angle and returns plots for every window into this directory")
	htmlFile   = flag.String("html", "", "Write an HTML point scatter of the first window")
	logFile    = flag.String("log-file", "", "Also write logs to this rotating file")
	debug      = flag.Bool("debug", false, "Enable debug logging")
	showVer    = flag.Bool("version", false, "Print version and exit")
)

func setupLogging(path string) {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	if path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Fatalf("create log dir: %v", err)
	}
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50,
		MaxAge:     14,
		MaxBackups: 5,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <scan.rxdu|scan.pcap>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if *showVer {
		fmt.Println("scanread", version.String())
		return
	}
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	primary := flag.Arg(0)
	setupLogging(*logFile)

	cfg := config.DefaultReaderConfig()
	if *configFile != "" {
		loaded, err := config.LoadReaderConfig(*configFile)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		cfg = loaded
	}
	if *debug {
		cfg.Debug = debug
	}
	monitoring.SetDebug(cfg.GetDebug())
	log.Printf("scanread %s", version.String())

	window := *windowSize
	if window <= 0 {
		window = cfg.GetWindowPulses()
	}
	if *startPulse < 0 || (*endPulse > 0 && *endPulse < *startPulse) {
		log.Fatalf("invalid range: start=%d end=%d", *startPulse, *endPulse)
	}

	opts := []scanfile.Option{scanfile.WithConfig(cfg)}
	if *dbFile != "" {
		readLog, err := sqlite.OpenReadLog(*dbFile)
		if err != nil {
			log.Fatalf("read log: %v", err)
		}
		defer readLog.Close()
		sessionID, err := readLog.StartSession(primary, *waveFile)
		if err != nil {
			log.Fatalf("read log: %v", err)
		}
		log.Printf("recording reads in %s (session %s)", *dbFile, sessionID)
		opts = append(opts, scanfile.WithObserver(readLog.SessionObserver(sessionID)))
	}
	if *plotDir != "" {
		if err := os.MkdirAll(*plotDir, 0o755); err != nil {
			log.Fatalf("plot dir: %v", err)
		}
	}

	sf, err := scanfile.Open(primary, *waveFile, opts...)
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	defer sf.Close()

	if *waveFile != "" {
		sum, err := sf.ReadWaveforms(0, cfg.GetWaveformDiagRecords())
		if err != nil {
			log.Fatalf("waveforms: %v", err)
		}
		fmt.Printf("waveforms [%d, %d): %d records, %d samples, %d channel 1 blocks\n",
			sum.Start, sum.End, sum.Records, sum.Samples, sum.Channel1Blocks())
	}

	wroteHTML := false
	for start := *startPulse; ; start += window {
		end := start + window
		if *endPulse > 0 {
			if start >= *endPulse {
				break
			}
			end = min(end, *endPulse)
		}

		w, err := sf.ReadData(start, end)
		if err != nil {
			log.Fatalf("read [%d, %d): %v", start, end, err)
		}
		if w.Len() > 0 {
			first, last := w.Pulses[0], w.Pulses[len(w.Pulses)-1]
			fmt.Printf("[%d, %d): %d pulses (ids %d-%d, lines %d-%d), %d points\n",
				start, end, w.Len(), first.PulseID, last.PulseID, first.Scanline, last.Scanline, len(w.Points))

			if *plotDir != "" {
				if _, err := monitor.PlotWindow(w, *plotDir); err != nil {
					log.Printf("plot [%d, %d): %v", start, end, err)
				}
			}
			if *htmlFile != "" && !wroteHTML {
				if err := writeHTML(*htmlFile, w, fmt.Sprintf("%s pulses %d-%d", filepath.Base(primary), start, end)); err != nil {
					log.Printf("html: %v", err)
				}
				wroteHTML = true
			}
		}
		if sf.Finished() || w.Len() == 0 {
			break
		}
	}

	stats := sf.Stats()
	fmt.Printf("total: %d reads, %d pulses, %d points, %d units, %d pulses observed (%d skips, %d replays)\n",
		stats.Reads, stats.PulsesReturned, stats.PointsReturned, stats.UnitsRead, sf.PulsesRead(), stats.Skips, stats.Replays)
}

func writeHTML(path string, w *scanfile.Window, title string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := monitor.RenderPointsHTML(f, w, title); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
