package service

import (
	"context"
	"errors"
	"fmt"
	neturl "net/url"
	"syscall"

	"google.golang.org/api/googleapi"
)

type errTmpIf interface{ Temporary() bool }
type errTmp struct{ error }

func (t errTmp) Temporary() bool    { return true }
func (t *errTmp) Unwrap() error     { return t.error }
func MakeTemporary(err error) error { return &errTmp{err} }

type errFatalIf interface{ Fatal() bool }
type errFatal struct{ error }

func (t errFatal) Fatal() bool    { return true }
func (t *errFatal) Unwrap() error { return t.error }
func MakeFatal(err error) error   { return &errFatal{err} }

// Temporary inspects the error trace and returns whether the error is transient
func Temporary(err error) bool {
	var uerr *neturl.Error
	if errors.As(err, &uerr) {
		err = uerr.Err
	}

	//First override some default syscall temporary statuses
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EIO, syscall.EBUSY, syscall.ECANCELED, syscall.ECONNABORTED, syscall.ECONNRESET, syscall.ENOMEM, syscall.EPIPE:
			return true
		}
	}

	//first check explicitely marked error
	var tmp errTmpIf
	if errors.As(err, &tmp) {
		return tmp.Temporary()
	}
	var gapiError *googleapi.Error
	if errors.As(err, &gapiError) {
		return gapiError.Code == 429 || gapiError.Code == 500
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}

// Fatal inspects the error and returns whether it's a fatal error
func Fatal(err error) bool {
	var tmp errFatalIf
	if errors.As(err, &tmp) {
		return tmp.Fatal()
	}
	return false
}

// MergeErrors, appending texts
// if priorityToErr is true, priority to the fatal error then to the temporary
// else, priority to no error, then to the temporary and finally to the fatal error.
func MergeErrors(priorityToError bool, err error, newErrs ...error) error {
	if len(newErrs) == 0 {
		return err
	}
	newErr := newErrs[0]

	if newErr == nil {
		if !priorityToError {
			return nil
		}
	} else if err == nil {
		err = newErr
	} else if priorityToError != Temporary(err) {
		err = fmt.Errorf("%w\n %v", err, newErr)
	} else {
		err = fmt.Errorf("%w\n %v", newErr, err)
	}
	return MergeErrors(priorityToError, err, newErrs[1:]...)
}

// ErrRejected is returned when a request cannot be served by a data store
// (read-only filesystem, unsupported data type...). The store is left unmodified.
type ErrRejected struct {
	Reason string
}

func (e ErrRejected) Error() string {
	return "request rejected: " + e.Reason
}

// ErrMissingParameter is a configuration error raised at construction time
type ErrMissingParameter struct {
	Component string
	Parameter string
}

func (e ErrMissingParameter) Error() string {
	return fmt.Sprintf("%s: missing required parameter '%s'", e.Component, e.Parameter)
}

// ErrUnknownType is returned when no constructor is registered for a type name
type ErrUnknownType struct {
	Kind string
	Type string
}

func (e ErrUnknownType) Error() string {
	return fmt.Sprintf("no %s registered with type '%s'", e.Kind, e.Type)
}

// ErrMalformedQuery is returned when a query string cannot be parsed
type ErrMalformedQuery struct {
	Query  string
	Reason string
	// InvalidValue is set when the fields are well delimited but a value is unusable (e.g. not a polygon)
	InvalidValue bool
}

func (e ErrMalformedQuery) Error() string {
	return fmt.Sprintf("malformed query '%s': %s", e.Query, e.Reason)
}

// ErrProductNotFound is returned by a remote backend when a product is not found or unavailable
type ErrProductNotFound struct {
	Product string
}

func (e ErrProductNotFound) Error() string {
	return fmt.Sprintf("Product not found or unavailable: %s", e.Product)
}

// IsRejected returns true if the error trace contains an ErrRejected
func IsRejected(err error) bool {
	var e ErrRejected
	return errors.As(err, &e)
}
