package main

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	specs := []struct {
		line string
		exp  lineKind
	}{
		{"[boot] entering long mode ... [ OKAY ]", kindProgress},
		{"[kmain] loading IDT ... [ OKAY ]", kindText},
		{"[kmain] kernel ready", kindReady},
		{"CPU EXCEPTION #PF: Page Fault", kindException},
		{"[irq] unrecoverable error: unrecoverable page fault", kindPanic},
		{"*** kernel panic: system halted ***", kindPanic},
		{"RAX = 0000000000000000 RBX = 0000000000000000", kindText},
		{"", kindText},
	}

	for specIndex, spec := range specs {
		if got := classify(spec.line); got != spec.exp {
			t.Errorf("[spec %d] expected %q to be classified as %s; got %s", specIndex, spec.line, spec.exp, got)
		}
	}
}

func TestMonitorReady(t *testing.T) {
	input := "[boot] page tables at P4=0x10000 P3=0x11000 P2=0x12000\r\n" +
		"[boot] linking page tables ... [ OKAY ]\r\n" +
		"[boot] entering long mode ... [ OKAY ]\r\n" +
		"[kmain] kernel ready\r\n" +
		"trailing output\r\n"

	var echo bytes.Buffer
	m := &monitor{echo: &echo}
	verdict, err := m.run(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}

	if verdict != outcomeReady || verdict.exitCode() != 0 {
		t.Fatalf("expected a ready verdict; got %d", verdict)
	}

	if m.progress != 3 {
		t.Errorf("expected 3 progress lines; got %d", m.progress)
	}

	if strings.Contains(echo.String(), "\r") || strings.Contains(echo.String(), "trailing") {
		t.Errorf("unexpected echo output %q", echo.String())
	}

	if len(m.screen) != 0 {
		t.Errorf("expected no captured screen; got %v", m.screen)
	}
}

func TestMonitorFatal(t *testing.T) {
	input := "[boot] loading GDT ... [ OKAY ]\n" +
		"\n" +
		"CPU EXCEPTION #GP: General Protection\n" +
		"Fault on vector 13 with error code 0x0\n" +
		"[irq] unrecoverable error: unhandled exception\n" +
		"*** kernel panic: system halted ***\n" +
		"-----------------------------------\n"

	m := &monitor{}
	verdict, err := m.run(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}

	if verdict != outcomeFatal || verdict.exitCode() != 1 {
		t.Fatalf("expected a fatal verdict; got %d", verdict)
	}

	exp := []string{
		"CPU EXCEPTION #GP: General Protection",
		"Fault on vector 13 with error code 0x0",
		"[irq] unrecoverable error: unhandled exception",
		"*** kernel panic: system halted ***",
	}
	if strings.Join(m.screen, "\n") != strings.Join(exp, "\n") {
		t.Fatalf("expected captured screen:\n%v\ngot:\n%v", exp, m.screen)
	}
}

func TestMonitorScreenLimits(t *testing.T) {
	m := &monitor{}
	m.feed("CPU EXCEPTION #UD: Invalid Opcode")
	m.feed(strings.Repeat("x", 2*screenCols))
	for i := 0; i < 2*screenRows; i++ {
		m.feed("line")
	}

	if len(m.screen) != screenRows {
		t.Fatalf("expected the screen to keep %d rows; got %d", screenRows, len(m.screen))
	}

	m = &monitor{}
	m.feed("CPU EXCEPTION #UD: Invalid Opcode")
	m.feed(strings.Repeat("x", 2*screenCols))
	if got := len(m.screen[1]); got != screenCols {
		t.Fatalf("expected lines to be clipped to %d columns; got %d", screenCols, got)
	}
}

func TestMonitorEndOfStream(t *testing.T) {
	m := &monitor{}
	verdict, err := m.run(strings.NewReader("[boot] loading GDT ... [ OKAY ]\n"))
	if err != nil {
		t.Fatal(err)
	}

	if verdict != outcomeUnknown || verdict.exitCode() != 2 {
		t.Fatalf("expected no verdict; got %d", verdict)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("device gone") }

func TestWatch(t *testing.T) {
	t.Run("read error", func(t *testing.T) {
		if _, err := watch(&monitor{}, failingReader{}, time.Second); err == nil {
			t.Fatal("expected the read error to be reported")
		}
	})

	t.Run("timeout", func(t *testing.T) {
		r, w := io.Pipe()
		defer w.Close()

		if _, err := watch(&monitor{}, r, 10*time.Millisecond); err != errTimeout {
			t.Fatalf("expected errTimeout; got %v", err)
		}
	})

	t.Run("ready", func(t *testing.T) {
		verdict, err := watch(&monitor{}, strings.NewReader("[kmain] kernel ready\n"), 0)
		if err != nil || verdict != outcomeReady {
			t.Fatalf("expected a ready verdict; got %d, %v", verdict, err)
		}
	})
}
