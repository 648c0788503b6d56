package scan

import "github.com/banshee-data/scanfile/internal/lidar/recordbuf"

// renumber shifts the point linkage of every buffered pulse after the point
// buffer front moved by shift records.
func renumber(pulses *recordbuf.Buffer[Pulse], shift uint32) {
	if shift == 0 {
		return
	}
	recs := pulses.Records()
	for i := range recs {
		if recs[i].PointCount > 0 {
			recs[i].PointStartIdx -= shift
		}
	}
}

// ownedPoints returns the number of points linked to the first n pulses.
func ownedPoints(pulses *recordbuf.Buffer[Pulse], n int) int {
	recs := pulses.Records()
	if n > len(recs) {
		n = len(recs)
	}
	total := 0
	for i := 0; i < n; i++ {
		total += int(recs[i].PointCount)
	}
	return total
}
