package health

// Checker is implemented by anything that can report on its own health.
// Check returns nil when healthy and an error describing the problem otherwise.
type Checker interface {
	Check() error
}

// CheckFunc adapts an ordinary function to the Checker interface.
type CheckFunc func() error

func (f CheckFunc) Check() error {
	return f()
}
