package dlt

import (
	"encoding/binary"
	"fmt"
)

// Log levels carried in the MSIN field of the extended header.
type LogLevel byte

const (
	LogFatal   LogLevel = 0x1
	LogError   LogLevel = 0x2
	LogWarn    LogLevel = 0x3
	LogInfo    LogLevel = 0x4
	LogDebug   LogLevel = 0x5
	LogVerbose LogLevel = 0x6
)

// typeLog is the MSTP value for log messages.
const typeLog = 0x0

// MessageBuilder assembles complete DLT log messages: standard header,
// header extra (ECU ID, session ID, timestamp), extended header and
// payload. The message counter wraps at 255, matching daemon behavior.
type MessageBuilder struct {
	htyp      byte
	counter   byte
	ecuID     [IDSize]byte
	appID     [IDSize]byte
	ctxID     [IDSize]byte
	sessionID uint32

	// Timestamp, when set, supplies the 0.1ms-resolution timestamp
	// written into each message.
	Timestamp func() uint32
}

// NewMessageBuilder returns a builder emitting version-1 messages with
// ECU ID, session ID, timestamp and extended header present.
// Identifiers longer than 4 bytes are truncated, shorter ones are
// zero-padded.
func NewMessageBuilder(ecuID, appID, ctxID string) *MessageBuilder {
	b := &MessageBuilder{
		htyp: Version1 | UEH | WEID | WSID | WTMS,
	}
	copy(b.ecuID[:], ecuID)
	copy(b.appID[:], appID)
	copy(b.ctxID[:], ctxID)
	return b
}

// Counter returns the value the next message will carry in MCNT.
func (b *MessageBuilder) Counter() byte { return b.counter }

// LogText builds a non-verbose log message carrying text as its payload.
func (b *MessageBuilder) LogText(level LogLevel, text string) ([]byte, error) {
	return b.build(level, []byte(text))
}

func (b *MessageBuilder) build(level LogLevel, payload []byte) ([]byte, error) {
	total := StandardHeaderSize + b.extraSize() + ExtendedHeaderSize + len(payload)
	if total > MaxMessageLength {
		return nil, fmt.Errorf("dlt: message length %d exceeds %d", total, MaxMessageLength)
	}

	msg := make([]byte, 0, total)
	msg = append(msg, b.htyp, b.counter)
	msg = binary.BigEndian.AppendUint16(msg, uint16(total))

	if b.htyp&WEID != 0 {
		msg = append(msg, b.ecuID[:]...)
	}
	if b.htyp&WSID != 0 {
		msg = binary.BigEndian.AppendUint32(msg, b.sessionID)
	}
	if b.htyp&WTMS != 0 {
		var tmsp uint32
		if b.Timestamp != nil {
			tmsp = b.Timestamp()
		}
		msg = binary.BigEndian.AppendUint32(msg, tmsp)
	}

	msin := byte(typeLog)<<4 | byte(level&0x0F)<<1
	msg = append(msg, msin, 0) // MSIN, NOAR (0 in non-verbose mode)
	msg = append(msg, b.appID[:]...)
	msg = append(msg, b.ctxID[:]...)
	msg = append(msg, payload...)

	b.counter++
	return msg, nil
}

func (b *MessageBuilder) extraSize() int {
	n := 0
	if b.htyp&WEID != 0 {
		n += IDSize
	}
	if b.htyp&WSID != 0 {
		n += 4
	}
	if b.htyp&WTMS != 0 {
		n += 4
	}
	return n
}
