// Package decode is the boundary between the scan readers and whatever
// decodes the scanner's wire format.
//
// A Source hands out decoded Units strictly in stream order and can only be
// rewound to the beginning. Dispatch walks a Unit and invokes a Handler's
// OnShot, OnEcho and OnLineStart callbacks in order; the pulse/point
// extractor in package scan is the production Handler.
//
// Three sources are provided:
//   - StreamSource reads the length-prefixed decoded-unit stream (.rxdu)
//     written by Encoder.
//   - PCAPSource replays units carried one per UDP payload in a classic
//     pcap capture, as recorded when a scanner streams over the network.
//   - MemorySource serves units from memory for tests and fixtures.
package decode
