package errors

import "fmt"

// Common error types shared by the acquire-method protocol core and both
// worker binaries.
var (
	// Protocol and config errors.
	ErrEmptyConfigPath  = fmt.Errorf("config file path cannot be empty")
	ErrConfigParse      = fmt.Errorf("failed to parse config")
	ErrConfigValidation = fmt.Errorf("invalid configuration")
	ErrMalformedMessage = fmt.Errorf("malformed acquire-method message")

	// HTTP worker errors.
	ErrResolveFailed     = fmt.Errorf("could not resolve host")
	ErrConnectFailed     = fmt.Errorf("could not connect to host")
	ErrHeaderParse       = fmt.Errorf("bad header data")
	ErrHeaderTooLong     = fmt.Errorf("header line too long")
	ErrBrokenRange       = fmt.Errorf("broken range support")
	ErrServerIO          = fmt.Errorf("error reading from server")
	ErrConnectionTimeout = fmt.Errorf("connection timed out")
	ErrSocketException   = fmt.Errorf("socket exception")
	ErrBrainDamage       = fmt.Errorf("massive server brain damage")

	// Worker lifecycle errors.
	ErrShutdownRequested = fmt.Errorf("shutdown requested")

	// Verifier errors.
	ErrVerifierExec    = fmt.Errorf("could not execute the signature verification helper")
	ErrVerifierNoData  = fmt.Errorf("clearsigned file isn't valid, got 'NODATA'")
	ErrVerifierInvalid = fmt.Errorf("at least one invalid signature was encountered")
	ErrVerifierUnknown = fmt.Errorf("unknown error executing the signature verification helper")
)

// Wrap wraps an error with additional context.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf wraps an error with additional formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
