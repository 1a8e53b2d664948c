package journal

import "encoding/binary"

// Header sizes and framing, unchanged from the write-ahead log this journal
// was adapted from: the in-memory ring below does not need a magic number
// or version tag to survive a restart, but keeping the same frame makes the
// CRC32 check and the pooled Entry struct reusable as-is.
const (
	HeaderSize = 24
	Magic      = 0xC0FFEE11
)

// EventType enumerates the kinds of events the statistics sink journals.
type EventType uint8

const (
	EventExecute EventType = iota + 1
	EventCommit
	EventAbort
	EventFallback
)

// Header is the fixed-size prefix of every Entry.
type Header struct {
	Magic      uint32
	Version    uint8
	EventType  EventType
	Reserved   uint16
	TxID       uint64
	PayloadLen uint32
	CRC32      uint32
}

// Entry is one recorded event: a transaction id, its kind, and an optional
// payload (e.g. latency in microseconds, encoded as 8 little-endian bytes).
type Entry struct {
	Header  Header
	Payload []byte
}

func (h *Header) Encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	buf[4] = h.Version
	buf[5] = byte(h.EventType)
	binary.LittleEndian.PutUint16(buf[6:8], h.Reserved)
	binary.LittleEndian.PutUint64(buf[8:16], h.TxID)
	binary.LittleEndian.PutUint32(buf[16:20], h.PayloadLen)
	binary.LittleEndian.PutUint32(buf[20:24], h.CRC32)
}

func (h *Header) Decode(buf []byte) {
	h.Magic = binary.LittleEndian.Uint32(buf[0:4])
	h.Version = buf[4]
	h.EventType = EventType(buf[5])
	h.Reserved = binary.LittleEndian.Uint16(buf[6:8])
	h.TxID = binary.LittleEndian.Uint64(buf[8:16])
	h.PayloadLen = binary.LittleEndian.Uint32(buf[16:20])
	h.CRC32 = binary.LittleEndian.Uint32(buf[20:24])
}
