package kfmt

import "io"

// PrefixWriter is an io.Writer that wraps another io.Writer and injects a
// prefix at the beginning of each line. Subsystems use it to tag their
// output (e.g. "[boot] ").
type PrefixWriter struct {
	// A writer where all writes get sent to.
	Sink io.Writer

	// The prefix injected at the beginning of each line.
	Prefix []byte

	midLine bool
}

// Write writes p to the sink, emitting the prefix before the first byte of
// every line. The returned byte count does not include injected prefixes.
func (w *PrefixWriter) Write(p []byte) (int, error) {
	var written, lineStart int

	for lineStart < len(p) {
		if !w.midLine {
			if _, err := w.Sink.Write(w.Prefix); err != nil {
				return written, err
			}
			w.midLine = true
		}

		lineEnd := lineStart
		for lineEnd < len(p) && p[lineEnd] != '\n' {
			lineEnd++
		}

		if lineEnd < len(p) {
			// include the newline; the next byte starts a new line
			lineEnd++
			w.midLine = false
		}

		n, err := w.Sink.Write(p[lineStart:lineEnd])
		written += n
		if err != nil {
			return written, err
		}
		lineStart = lineEnd
	}

	return written, nil
}
