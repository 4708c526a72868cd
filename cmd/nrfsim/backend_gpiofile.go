// GPIO CSV backends: an input-stimulus reader that drives external pin
// levels from a recorded trace, and an output-log writer that records
// every IN-bit change, both using "time,pin,level" rows (spec.md §6 File
// formats).
package main

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"periph.io/x/conn/v3/gpio"

	"hwsim.dev/nrfperiph/internal/engine"
	gpiopkg "hwsim.dev/nrfperiph/internal/gpio"
)

// gpioInputStimulus replays a recorded CSV trace of external pin changes
// against a port, one row per scheduler deadline.
type gpioInputStimulus struct {
	port     *gpiopkg.Port
	sched    *engine.Scheduler
	rows     []stimulusRow
	next     int
	deadline engine.Time
}

type stimulusRow struct {
	t     engine.Time
	pin   int
	level gpio.Level
}

// loadGPIOInputStimulus reads path as "time,pin,level" CSV rows (level is
// 0 or 1) and returns a Source that drives port accordingly.
func loadGPIOInputStimulus(path string, port *gpiopkg.Port, sched *engine.Scheduler) (*gpioInputStimulus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gpio input stimulus: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("gpio input stimulus %s: %w", path, err)
	}
	s := &gpioInputStimulus{port: port, sched: sched, deadline: engine.Never}
	for n, rec := range records {
		if len(rec) != 3 {
			return nil, fmt.Errorf("gpio input stimulus %s: row %d: want 3 fields, got %d", path, n, len(rec))
		}
		t, err := strconv.ParseUint(rec[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("gpio input stimulus %s: row %d: %w", path, n, err)
		}
		pin, err := strconv.Atoi(rec[1])
		if err != nil {
			return nil, fmt.Errorf("gpio input stimulus %s: row %d: %w", path, n, err)
		}
		lv, err := strconv.Atoi(rec[2])
		if err != nil {
			return nil, fmt.Errorf("gpio input stimulus %s: row %d: %w", path, n, err)
		}
		level := gpio.Low
		if lv != 0 {
			level = gpio.High
		}
		s.rows = append(s.rows, stimulusRow{t: engine.Time(t), pin: pin, level: level})
	}
	if len(s.rows) > 0 {
		s.deadline = s.rows[0].t
	}
	sched.Register(s)
	return s, nil
}

// NextDeadline implements engine.Source.
func (s *gpioInputStimulus) NextDeadline() engine.Time { return s.deadline }

// Fire implements engine.Source: applies every row scheduled for now, then
// arms the next one.
func (s *gpioInputStimulus) Fire(now engine.Time) {
	for s.next < len(s.rows) && s.rows[s.next].t == now {
		row := s.rows[s.next]
		s.port.DriveExternal(row.pin, row.level)
		s.next++
	}
	if s.next < len(s.rows) {
		s.deadline = s.rows[s.next].t
	} else {
		s.deadline = engine.Never
	}
}

// gpioOutputLog records every IN-bit transition on a port to a CSV file.
type gpioOutputLog struct {
	sched *engine.Scheduler
	w     *bufio.Writer
	f     *os.File
}

// attachGPIOOutputLog opens path for writing and wires cb onto every pin of
// port so each IN change is appended as a CSV row.
func attachGPIOOutputLog(path string, port *gpiopkg.Port, sched *engine.Scheduler) (*gpioOutputLog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("gpio output log: %w", err)
	}
	l := &gpioOutputLog{sched: sched, w: bufio.NewWriter(f), f: f}
	fmt.Fprintln(l.w, "time,pin,level")
	for pin := 0; pin < gpiopkg.NumPins; pin++ {
		p := pin
		port.SetCallback(p, func(pin int, level gpio.Level) {
			l.record(pin, level)
		})
	}
	return l, nil
}

func (l *gpioOutputLog) record(pin int, level gpio.Level) {
	v := 0
	if level == gpio.High {
		v = 1
	}
	fmt.Fprintf(l.w, "%d,%d,%d\n", l.sched.Now(), pin, v)
}

// Close flushes and closes the underlying file.
func (l *gpioOutputLog) Close() error {
	if err := l.w.Flush(); err != nil {
		l.f.Close()
		return err
	}
	return l.f.Close()
}
