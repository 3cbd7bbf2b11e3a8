package record

import "fmt"

// Decoded is the result of decoding a Message. It is one of Typed, Opaque or DecodeError.
type Decoded interface {
	decoded()
}

// Typed is a message that was decoded into a watermark bearing Record.
type Typed struct {
	Record Record
}

// Opaque is a message that no decoder understands. Its bytes are kept as they are.
type Opaque struct {
	Key   []byte
	Bytes []byte
}

// DecodeError is a message that matched a decoder but could not be decoded.
type DecodeError struct {
	Key   []byte
	Bytes []byte
	Err   error
}

func (Typed) decoded()       {}
func (Opaque) decoded()      {}
func (DecodeError) decoded() {}

func (e DecodeError) Error() string {
	return fmt.Sprintf("failed to decode record: %v", e.Err)
}

func (e DecodeError) Unwrap() error {
	return e.Err
}
