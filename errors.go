package belief

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"
)

// ConfigurationError is returned when a model, mapping or optimizer is set up wrongly:
// unknown layers, non-adjacent links, invalid settings.
type ConfigurationError struct{ msg string }

func (err ConfigurationError) Error() string { return err.msg }

// DimensionError is returned when matrix shapes don't line up with the layers they are used with.
type DimensionError struct{ msg string }

func (err DimensionError) Error() string { return err.msg }

// NumericError is returned when a computation produces values which are not finite.
type NumericError struct{ msg string }

func (err NumericError) Error() string { return err.msg }

// DataUnavailableError wraps failures of the data source used for training or evaluation.
type DataUnavailableError struct {
	msg   string
	cause error
}

func (err DataUnavailableError) Error() string {
	if err.cause == nil {
		return err.msg
	}
	return err.msg + ": " + err.cause.Error()
}

func (err DataUnavailableError) Cause() error  { return err.cause }
func (err DataUnavailableError) Unwrap() error { return err.cause }

// Configurationf creates a ConfigurationError with a stack trace.
func Configurationf(format string, args ...interface{}) error {
	return errors.WithStack(ConfigurationError{fmt.Sprintf(format, args...)})
}

// Dimensionf creates a DimensionError with a stack trace.
func Dimensionf(format string, args ...interface{}) error {
	return errors.WithStack(DimensionError{fmt.Sprintf(format, args...)})
}

// Numericf creates a NumericError with a stack trace.
func Numericf(format string, args ...interface{}) error {
	return errors.WithStack(NumericError{fmt.Sprintf(format, args...)})
}

// DataUnavailable wraps cause into a DataUnavailableError.
func DataUnavailable(cause error, format string, args ...interface{}) error {
	return errors.WithStack(DataUnavailableError{msg: fmt.Sprintf(format, args...), cause: cause})
}

func IsConfigurationError(err error) bool {
	var e ConfigurationError
	return errors.As(err, &e)
}

func IsDimensionError(err error) bool {
	var e DimensionError
	return errors.As(err, &e)
}

func IsNumericError(err error) bool {
	var e NumericError
	return errors.As(err, &e)
}

func IsDataUnavailableError(err error) bool {
	var e DataUnavailableError
	return errors.As(err, &e)
}

type manyErr []error

func (err manyErr) Error() string {
	var buf bytes.Buffer
	for _, e := range err {
		fmt.Fprintln(&buf, e.Error())
	}
	return buf.String()
}

// asErr returns nil when no errors were collected.
func (err manyErr) asErr() error {
	if len(err) == 0 {
		return nil
	}
	return err
}
