package cmd

// Exit codes clin itself produces, as opposed to the wrapped command's.
const (
	exitFailure = 1
	exitUsage   = 2
)

// exitError makes the process exit with code after the error is reported.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}
