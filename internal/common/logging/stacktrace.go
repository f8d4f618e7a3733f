package logging

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Stacktrace is the field under which WithStacktrace logs the stack of an error.
const Stacktrace = "stacktrace"

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// WithStacktrace adds err to logger and, if err or anything it wraps was created by pkg/errors, the innermost
// stack trace found.
func WithStacktrace(logger *logrus.Entry, err error) *logrus.Entry {
	logger = logger.WithError(err)
	if stack := ExtractStack(err); stack != nil {
		logger = logger.WithField(Stacktrace, stack)
	}
	return logger
}

// ExtractStack follows both Cause and Unwrap chains and returns the deepest stack trace, which is the one
// closest to where the error originated. It returns nil if there is none.
func ExtractStack(err error) errors.StackTrace {
	var deepest errors.StackTrace
	for err != nil {
		if st, ok := err.(stackTracer); ok {
			deepest = st.StackTrace()
		}
		err = unwrapOnce(err)
	}
	return deepest
}

func unwrapOnce(err error) error {
	switch e := err.(type) {
	case interface{ Cause() error }:
		return e.Cause()
	case interface{ Unwrap() error }:
		return e.Unwrap()
	default:
		return nil
	}
}
