package session

import (
	"errors"
	"io"

	"github.com/kovidgoyal/pngrows/types"
)

// bridge holds the single pending error of a session. The codec reports
// every fatal condition to record before the failing primitive returns, the
// byte stream wrappers report failures of the caller's reader or writer. call
// clears the slot before each primitive and turns whatever it holds afterwards
// into the error of that step, so no step ever sees a stale error.
type bridge struct {
	pending error
}

func (b *bridge) record(err error) {
	if err != nil && b.pending == nil {
		b.pending = err
	}
}

func (b *bridge) call(f func() error) error {
	b.pending = nil
	err := f()
	if b.pending != nil {
		err = b.pending
		b.pending = nil
	}
	return normalize(err)
}

// normalize maps an error from a codec into the error taxonomy. Errors that
// are not already typed are codec failures and keep their message verbatim.
func normalize(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{types.ErrIOFailure, types.ErrCapabilityUnavailable, types.ErrFormatMismatch,
		types.ErrOutOfRange, types.ErrCodecFailure, types.ErrOutOfOrder} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return &types.CodecError{Message: err.Error()}
}

// A reader returning no data and no error this many times in a row is
// treated as stalled, the same limit bufio uses.
const maxConsecutiveEmptyReads = 100

// source reports failures of the caller's reader to the bridge. End of
// stream is left to the codec, which knows whether more bytes were needed.
type source struct {
	r     io.Reader
	b     *bridge
	empty int
}

func (s *source) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if n == 0 && err == nil && len(p) > 0 {
		if s.empty++; s.empty >= maxConsecutiveEmptyReads {
			err = io.ErrNoProgress
		}
	} else {
		s.empty = 0
	}
	if err != nil && err != io.EOF {
		s.b.record(&types.IOError{Op: "read", Err: err})
	}
	return n, err
}

type sink struct {
	w io.Writer
	b *bridge
}

func (s *sink) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	if err != nil {
		s.b.record(&types.IOError{Op: "write", Err: err})
	}
	return n, err
}
