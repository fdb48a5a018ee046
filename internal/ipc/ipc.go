package ipc

import (
	"errors"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"
)

// DefaultPort is the port both the client and the listener use unless told otherwise.
const DefaultPort = 6445

// Event describes one completed command.
type Event struct {
	Command  string
	Status   ExitStatus
	Duration time.Duration
	// Origin identifies where the command ran, usually a hostname.
	Origin string
}

// ExitStatus is either a normal exit code or the name of the signal that
// terminated the process. Use Exited or Signaled to build one.
type ExitStatus struct {
	Code   int
	Signal string
}

// Exited returns the status of a process that exited normally with code.
func Exited(code int) ExitStatus {
	return ExitStatus{Code: code}
}

// Signaled returns the status of a process terminated by the named signal.
func Signaled(signal string) ExitStatus {
	return ExitStatus{Signal: signal}
}

// IsSignal reports whether the process was terminated by a signal.
func (s ExitStatus) IsSignal() bool {
	return s.Signal != ""
}

// Success reports whether the process exited normally with code 0.
func (s ExitStatus) Success() bool {
	return !s.IsSignal() && s.Code == 0
}

func (s ExitStatus) String() string {
	if s.IsSignal() {
		return "signal " + s.Signal
	}
	return "exit " + strconv.Itoa(s.Code)
}

// Validate checks the invariants every Event on the wire must hold.
func (e Event) Validate() error {
	if e.Command == "" {
		return errors.New("command is required")
	}
	// JSON would replace invalid bytes with U+FFFD, so the event would not
	// survive the trip.
	if !utf8.ValidString(e.Command) {
		return fmt.Errorf("command %q is not valid UTF-8", e.Command)
	}
	if !utf8.ValidString(e.Origin) {
		return fmt.Errorf("origin %q is not valid UTF-8", e.Origin)
	}
	if e.Duration < 0 {
		return fmt.Errorf("duration must not be negative, got %s", e.Duration)
	}
	if e.Status.IsSignal() && e.Status.Code != 0 {
		return fmt.Errorf("status carries both exit code %d and signal %s", e.Status.Code, e.Status.Signal)
	}
	return nil
}

// Binding is the address a listener is bound to.
type Binding struct {
	Port int
	// Public binds all interfaces instead of loopback only.
	Public bool
}

// Host returns the interface address for the binding.
func (b Binding) Host() string {
	if b.Public {
		return "0.0.0.0"
	}
	return "127.0.0.1"
}

// Addr returns the host:port string passed to net.Listen.
func (b Binding) Addr() string {
	return fmt.Sprintf("%s:%d", b.Host(), b.Port)
}

// Delivery is the outcome of a single Send. It is a value, not an error:
// callers decide whether a failed delivery matters.
type Delivery struct {
	Addr string
	Err  error
}

// Delivered reports whether the event was written to the listener.
func (d Delivery) Delivered() bool {
	return d.Err == nil
}

// ConnectError is returned when no listener could be reached.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("could not connect to a clin listener at %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// WriteError is returned when the connection dropped while writing the event.
type WriteError struct {
	Addr string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write notification to %s: %v", e.Addr, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// BindError is returned when the listener cannot acquire its address.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("could not listen on %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}
