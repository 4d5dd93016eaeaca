// Command bootmon watches the serial console of an emulated kernel. It echoes
// every line, tracks boot progress and exits once the kernel reports that it
// is ready (status 0), halts on a fatal exception or panic (status 1), or the
// console fails or times out (status 2). With -render the last exception
// screen is saved as a PNG image.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	tty "github.com/mattn/go-tty"
)

var errTimeout = errors.New("timed out waiting for the kernel")

func exit(code int, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "[bootmon] error: %s\n", err.Error())
	}
	os.Exit(code)
}

// watch runs m over r and gives up after timeout. A zero timeout waits
// forever.
func watch(m *monitor, r io.Reader, timeout time.Duration) (outcome, error) {
	type result struct {
		verdict outcome
		err     error
	}

	done := make(chan result, 1)
	go func() {
		verdict, err := m.run(r)
		done <- result{verdict, err}
	}()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case res := <-done:
		return res.verdict, res.err
	case <-expired:
		return outcomeUnknown, errTimeout
	}
}

// monitorConsole watches the console at dev and returns the exit status.
func monitorConsole(dev, render string, timeout time.Duration) (int, error) {
	console, err := tty.OpenDevice(dev)
	if err != nil {
		return 2, err
	}
	defer console.Close()

	restore, err := console.Raw()
	if err != nil {
		return 2, err
	}
	defer restore()

	m := &monitor{echo: os.Stdout}
	verdict, err := watch(m, console.Input(), timeout)
	if err != nil {
		return 2, err
	}

	fmt.Fprintf(os.Stderr, "[bootmon] %d boot steps completed\n", m.progress)

	if render != "" && len(m.screen) != 0 {
		if err = renderScreen(m.screen, render); err != nil {
			return 2, err
		}
	}

	return verdict.exitCode(), nil
}

func main() {
	dev := flag.String("dev", "", "serial device the kernel console is attached to")
	render := flag.String("render", "", "save the exception screen to this PNG file")
	timeout := flag.Duration("timeout", 30*time.Second, "how long to wait for the kernel (0 waits forever)")
	flag.Parse()

	if *dev == "" {
		exit(2, errors.New("missing -dev"))
	}

	exit(monitorConsole(*dev, *render, *timeout))
}
