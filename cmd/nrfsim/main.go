// Command nrfsim runs the nRF peripheral behavioral simulator: it builds a
// World from the configured instance counts, wires each UART/GPIO instance
// to its chosen backend, and drives the scheduler until simulated time
// reaches the -run_for_us limit (the CPU core itself is out of scope per
// spec.md §1, so no firmware runs).
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"hwsim.dev/nrfperiph/internal/engine"
	"hwsim.dev/nrfperiph/internal/uart/backend/fifo"
	"hwsim.dev/nrfperiph/internal/uart/backend/logfile"
	"hwsim.dev/nrfperiph/internal/uart/backend/loopback"
	"hwsim.dev/nrfperiph/internal/world"
)

var (
	numRTC   = flag.Int("rtc_count", 2, "number of RTC instances")
	numTimer = flag.Int("timer_count", 2, "number of TIMER instances")
	numUART  = flag.Int("uart_count", 1, "number of UART instances")
	flashPath = flag.String("flash_file", "", "path to back NVMC flash with an mmap'd file (default: in-process buffer)")
	runFor   = flag.Uint64("run_for_us", 1_000_000, "simulated microseconds to run before exiting")

	uart0Loopback   = flag.Bool("uart0_loopback", true, "wire UART0's Tx back to its own Rx")
	uart0FifoTx     = flag.String("uart0_fifo_tx", "", "path to the Tx named pipe for UART0's inter-process backend")
	uart0FifoRx     = flag.String("uart0_fifo_rx", "", "path to the Rx named pipe for UART0's inter-process backend")
	uart0Logfile    = flag.String("uart0_logfile", "", "path to record UART0's traffic as CSV")

	gpio0InputCSV  = flag.String("gpio0_input_csv", "", "path to a CSV trace of external pin stimulus for GPIO port 0")
	gpio0OutputCSV = flag.String("gpio0_output_csv", "", "path to record GPIO port 0's IN-bit transitions as CSV")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "nrfsim: %v\n", err)
		os.Exit(2)
	}
}

func run() error {
	log.SetFlags(log.Flags() &^ (log.Ldate | log.Ltime))
	flag.Parse()

	w, err := world.New(world.Config{
		NumRTC:    *numRTC,
		NumTimer:  *numTimer,
		NumUART:   *numUART,
		FlashPath: *flashPath,
	})
	if err != nil {
		return err
	}
	defer w.Close()

	if err := wireBackends(w); err != nil {
		return err
	}

	log.Printf("nrfsim: %d RTC, %d TIMER, %d UART instances wired", len(w.RTC), len(w.Timer), len(w.UART))

	now := w.Run(engine.Time(*runFor))
	log.Printf("nrfsim: ran to simulated time %d", now)
	return nil
}

// wireBackends attaches each configured UART/GPIO backend to its instance
// and registers its teardown as an ON_EXIT_PRE lifecycle hook, per the
// flags registered above (spec.md §6 "Command line", §4.1 backend-depends
// priority).
func wireBackends(w *world.World) error {
	if len(w.UART) > 0 {
		u := w.UART[0]
		switch {
		case *uart0FifoTx != "" && *uart0FifoRx != "":
			b, err := fifo.Open(u, w.Sched, *uart0FifoTx, *uart0FifoRx)
			if err != nil {
				return fmt.Errorf("uart0: %w", err)
			}
			w.Lifecycle.Register(engine.OnExitPre, engine.PriorityBackendDepends, b.Close)
		case *uart0Logfile != "":
			b, err := logfile.Create(u, w.Sched, *uart0Logfile)
			if err != nil {
				return fmt.Errorf("uart0: %w", err)
			}
			w.Lifecycle.Register(engine.OnExitPre, engine.PriorityBackendDepends, b.Close)
		case *uart0Loopback:
			loopback.Attach(u)
		}
	}

	if len(w.GPIO) > 0 {
		port := w.GPIO[0]
		if *gpio0InputCSV != "" {
			if _, err := loadGPIOInputStimulus(*gpio0InputCSV, port, w.Sched); err != nil {
				return fmt.Errorf("gpio0: %w", err)
			}
		}
		if *gpio0OutputCSV != "" {
			l, err := attachGPIOOutputLog(*gpio0OutputCSV, port, w.Sched)
			if err != nil {
				return fmt.Errorf("gpio0: %w", err)
			}
			w.Lifecycle.Register(engine.OnExitPre, engine.PriorityBackendDepends, l.Close)
		}
	}

	return nil
}
