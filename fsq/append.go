package fsq

import (
	"encoding/binary"

	"github.com/golang/snappy"
)

// AppendStrategy serializes one opaque message onto an open handle and
// reports the exact number of bytes appended. It never buffers: every byte
// handed to Append must be visible to the caller's Sync before Append
// returns, since the engine relies on that to flush before it acknowledges
// a push.
type AppendStrategy interface {
	Append(f File, msg []byte) (int, error)
}

// RawAppend writes msg unmodified.
type RawAppend struct{}

func (RawAppend) Append(f File, msg []byte) (int, error) {
	n, err := f.Write(msg)
	if err != nil {
		return n, err
	}
	return n, f.Sync()
}

// SeparatorAppend writes msg followed by a fixed separator; the reported
// byte count includes the separator, so a finalized file is a plain
// separator-joined concatenation of the messages pushed into it.
type SeparatorAppend struct {
	Separator []byte
}

// NewSeparatorAppend builds a SeparatorAppend, defaulting to "\n" when sep
// is empty.
func NewSeparatorAppend(sep []byte) SeparatorAppend {
	if len(sep) == 0 {
		sep = []byte("\n")
	}
	return SeparatorAppend{Separator: sep}
}

func (s SeparatorAppend) Append(f File, msg []byte) (int, error) {
	buf := make([]byte, 0, len(msg)+len(s.Separator))
	buf = append(buf, msg...)
	buf = append(buf, s.Separator...)
	n, err := f.Write(buf)
	if err != nil {
		return n, err
	}
	return n, f.Sync()
}

// SnappyAppend wraps a delegate strategy and snappy-compresses the block
// the delegate would have written, framing it with a 4-byte little-endian
// length prefix so a reader can pull compressed blocks back off a
// finalized file without parsing message content (the framing is
// structural, not a message-level parse, so it does not conflict with the
// "messages are opaque" non-goal). Grounded on internal/engine/output.go's
// use of github.com/golang/snappy for per-message compression.
type SnappyAppend struct {
	Delegate AppendStrategy
}

func NewSnappyAppend(delegate AppendStrategy) SnappyAppend {
	if delegate == nil {
		delegate = RawAppend{}
	}
	return SnappyAppend{Delegate: delegate}
}

// countingFile records what the delegate wrote without touching disk, so
// SnappyAppend can compress the whole delegate-framed block in one shot.
type countingFile struct {
	buf []byte
}

func (c *countingFile) Write(p []byte) (int, error) {
	c.buf = append(c.buf, p...)
	return len(p), nil
}
func (c *countingFile) Sync() error  { return nil }
func (c *countingFile) Close() error { return nil }

func (s SnappyAppend) Append(f File, msg []byte) (int, error) {
	cf := &countingFile{}
	if _, err := s.Delegate.Append(cf, msg); err != nil {
		return 0, err
	}

	compressed := snappy.Encode(nil, cf.buf)

	header := make([]byte, 4)
	binary.LittleEndian.PutUint32(header, uint32(len(compressed)))

	n1, err := f.Write(header)
	if err != nil {
		return n1, err
	}
	n2, err := f.Write(compressed)
	if err != nil {
		return n1 + n2, err
	}
	if err := f.Sync(); err != nil {
		return n1 + n2, err
	}
	return n1 + n2, nil
}
