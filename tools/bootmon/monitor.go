package main

import (
	"bufio"
	"io"
	"strings"
)

// Screen geometry of the captured exception screen.
const (
	screenCols = 80
	screenRows = 25
)

type lineKind uint8

const (
	kindText lineKind = iota
	kindProgress
	kindException
	kindPanic
	kindReady
)

func (k lineKind) String() string {
	switch k {
	case kindProgress:
		return "progress"
	case kindException:
		return "exception"
	case kindPanic:
		return "panic"
	case kindReady:
		return "ready"
	default:
		return "text"
	}
}

// outcome is the verdict reached after watching a boot.
type outcome uint8

const (
	outcomeUnknown outcome = iota
	outcomeReady
	outcomeFatal
)

// exitCode maps an outcome to the process exit status. A stream that ends
// without a verdict counts as an I/O failure.
func (o outcome) exitCode() int {
	switch o {
	case outcomeReady:
		return 0
	case outcomeFatal:
		return 1
	default:
		return 2
	}
}

// classify recognizes the lines the kernel prints while booting.
func classify(line string) lineKind {
	switch {
	case strings.HasPrefix(line, "[boot] "):
		return kindProgress
	case strings.HasPrefix(line, "CPU EXCEPTION "):
		return kindException
	case strings.Contains(line, "*** kernel panic: system halted ***"),
		strings.Contains(line, "] unrecoverable error: "):
		return kindPanic
	case line == "[kmain] kernel ready":
		return kindReady
	default:
		return kindText
	}
}

// monitor follows the serial output of a booting kernel.
type monitor struct {
	echo io.Writer

	progress int
	verdict  outcome

	// screen holds the lines printed since the last exception header.
	screen    []string
	capturing bool
}

// run consumes r line by line until the kernel reports it is ready, halts,
// or the stream ends.
func (m *monitor) run(r io.Reader) (outcome, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if m.feed(scanner.Text()) {
			return m.verdict, nil
		}
	}

	if err := scanner.Err(); err != nil {
		return outcomeUnknown, err
	}
	return m.verdict, nil
}

// feed processes a single line and reports whether a verdict was reached.
func (m *monitor) feed(line string) bool {
	line = strings.TrimRight(line, "\r")
	if m.echo != nil {
		io.WriteString(m.echo, line+"\n")
	}

	kind := classify(line)
	switch kind {
	case kindProgress:
		m.progress++
	case kindException:
		m.screen = m.screen[:0]
		m.capturing = true
	case kindReady:
		m.verdict = outcomeReady
		return true
	}

	if m.capturing {
		m.capture(line)
	}

	if kind == kindPanic && strings.Contains(line, "system halted") {
		m.verdict = outcomeFatal
		return true
	}
	return false
}

func (m *monitor) capture(line string) {
	if len(line) > screenCols {
		line = line[:screenCols]
	}

	m.screen = append(m.screen, line)
	if len(m.screen) > screenRows {
		m.screen = m.screen[len(m.screen)-screenRows:]
	}
}
