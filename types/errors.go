package types

import (
	"errors"
	"fmt"
)

var _ = fmt.Print

var (
	ErrIOFailure             = errors.New("pngrows: i/o failure")
	ErrCapabilityUnavailable = errors.New("pngrows: capability unavailable")
	ErrFormatMismatch        = errors.New("pngrows: format mismatch")
	ErrOutOfRange            = errors.New("pngrows: index out of range")
	ErrCodecFailure          = errors.New("pngrows: codec failure")
	ErrOutOfOrder            = errors.New("pngrows: protocol call out of order")
)

// IOError reports that the underlying byte stream could not satisfy a request.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("pngrows: %s failed: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error        { return e.Err }
func (e *IOError) Is(target error) bool { return target == ErrIOFailure }

// CapabilityError reports that the codec was built without a needed conversion.
type CapabilityError struct {
	Feature Feature
	// What describes the situation that required the feature.
	What string
}

func (e *CapabilityError) Error() string {
	ans := fmt.Sprintf("pngrows: %s support unavailable", e.Feature.Name())
	if e.What != "" {
		ans = fmt.Sprintf("pngrows: %s; %s support unavailable", e.What, e.Feature.Name())
	}
	if tag := e.Feature.BuildTag(); tag != "" {
		ans += fmt.Sprintf("; rebuild without the %s build tag", tag)
	}
	return ans
}

func (e *CapabilityError) Is(target error) bool { return target == ErrCapabilityUnavailable }

// FormatMismatchError reports that a stream is not in the required format.
type FormatMismatchError struct {
	Msg string
}

func (e *FormatMismatchError) Error() string        { return "pngrows: " + e.Msg }
func (e *FormatMismatchError) Is(target error) bool { return target == ErrFormatMismatch }

// OutOfRangeError reports a buffer access outside its bounds.
type OutOfRangeError struct {
	What        string
	Index, Size int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("pngrows: %s index %d out of range [0, %d)", e.What, e.Index, e.Size)
}

func (e *OutOfRangeError) Is(target error) bool { return target == ErrOutOfRange }

// CodecError carries a fatal message reported by the codec, verbatim.
type CodecError struct {
	Message string
}

func (e *CodecError) Error() string        { return e.Message }
func (e *CodecError) Is(target error) bool { return target == ErrCodecFailure }

// ProtocolError reports a session step invoked in the wrong state.
type ProtocolError struct {
	Op    string
	State string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("pngrows: %s called in state %s", e.Op, e.State)
}

func (e *ProtocolError) Is(target error) bool { return target == ErrOutOfOrder }
