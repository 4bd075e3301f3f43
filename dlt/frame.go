// Package dlt implements the DLT (AUTOSAR Diagnostic Log and Trace)
// wire framing: the 4-byte standard header whose bytes 2-3 carry the
// big-endian total message length, and a reader that recovers exact
// message boundaries from a continuous byte stream.
package dlt

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// StandardHeaderSize is the fixed prefix of every DLT message.
	StandardHeaderSize = 4
	// ExtendedHeaderSize is the optional extended header (MSIN, NOAR,
	// APID, CTID), present when the UEH bit is set.
	ExtendedHeaderSize = 10
	// IDSize is the width of ECU, application and context identifiers.
	IDSize = 4

	// MinMessageLength is the smallest valid value of the length field:
	// a message is never shorter than its own standard header.
	MinMessageLength = StandardHeaderSize
	// MaxMessageLength is the largest value the 16-bit length field can carry.
	MaxMessageLength = 65535
)

// HTYP flag bits of the standard header.
const (
	UEH  = 0x01 // use extended header
	MSBF = 0x02 // payload is most significant byte first
	WEID = 0x04 // with ECU ID
	WSID = 0x08 // with session ID
	WTMS = 0x10 // with timestamp
	VERS = 0xE0 // version number, bits 5-7

	// Version1 is DLT protocol version 1 in the VERS bits.
	Version1 = 0x10
)

// FramingError reports a length field outside the valid range. It is
// fatal to the connection that produced it: once the length field is
// wrong there is no way to find the next message boundary, so the
// reader never attempts to resynchronize.
type FramingError struct {
	Length uint16
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("dlt: invalid message length %d (want %d..%d)", e.Length, MinMessageLength, MaxMessageLength)
}

// Header is the decoded standard header of a DLT message.
type Header struct {
	HTYP   byte
	MCNT   byte
	Length uint16
}

func (h Header) HasExtendedHeader() bool { return h.HTYP&UEH != 0 }
func (h Header) HasECUID() bool          { return h.HTYP&WEID != 0 }
func (h Header) HasSessionID() bool      { return h.HTYP&WSID != 0 }
func (h Header) HasTimestamp() bool      { return h.HTYP&WTMS != 0 }
func (h Header) Version() byte           { return (h.HTYP & VERS) >> 5 }

// ParseHeader decodes the standard header from the first 4 bytes of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < StandardHeaderSize {
		return Header{}, io.ErrUnexpectedEOF
	}
	return Header{
		HTYP:   b[0],
		MCNT:   b[1],
		Length: binary.BigEndian.Uint16(b[2:4]),
	}, nil
}

// FrameReader re-frames a raw byte stream into discrete DLT messages.
// A single Read may consume any number of underlying reads; partial
// reads from the source are handled transparently.
type FrameReader struct {
	r *bufio.Reader
}

func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReader(r)}
}

// Read returns the next complete message, standard header included,
// exactly as it appeared on the wire.
//
// A stream that ends cleanly, or mid-header, yields io.EOF. A stream
// that ends mid-body yields io.ErrUnexpectedEOF. A length field below
// MinMessageLength yields a *FramingError; the caller must treat the
// connection as unrecoverable.
func (fr *FrameReader) Read() ([]byte, error) {
	header := make([]byte, StandardHeaderSize)
	if _, err := io.ReadFull(fr.r, header); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}

	length := binary.BigEndian.Uint16(header[2:4])
	if length < MinMessageLength {
		return nil, &FramingError{Length: length}
	}

	frame := make([]byte, length)
	copy(frame, header)
	if _, err := io.ReadFull(fr.r, frame[StandardHeaderSize:]); err != nil {
		return nil, err
	}
	return frame, nil
}
