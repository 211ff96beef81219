// Package capture provides edge sources for the DCC decoder.
//
// A capture is a recording of the track signal taken by a logic analyser. Two
// on-disk formats are supported:
//
//   - logic: raw little-endian sample words as exported by sigrok
//     ("binary" output), UnitSize bytes per sample, one bit per channel.
//   - text: one edge sample index per line, '#' comments; an optional
//     "# samplerate: N" header supplies the sample rate.
//
// Either format may be gzip or zstd compressed. Compression is detected from
// the file extension (.gz, .zst) unless set explicitly.
//
// All sources implement dcc.EdgeSource and report io.EOF when exhausted.
package capture
