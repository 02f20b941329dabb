package midisync

import (
	gomidi "gitlab.com/gomidi/midi/v2"
)

// Packet is a short MIDI message stored by value, so the audio thread can
// hand it to the output queue without allocating.
type Packet struct {
	Data [3]byte
	Len  uint8
}

// PacketOf copies a message of up to three bytes. Longer messages (sysex)
// are truncated, which callers avoid.
func PacketOf(msg gomidi.Message) Packet {
	var p Packet
	p.Len = uint8(copy(p.Data[:], msg))
	return p
}

// Message returns the packet as a gomidi message. It allocates, so call it
// from the output thread only.
func (p Packet) Message() gomidi.Message {
	b := make([]byte, p.Len)
	copy(b, p.Data[:p.Len])
	return gomidi.Message(b)
}

// Sender queues packets for the MIDI output thread. Send must not block.
type Sender interface {
	Send(Packet) bool
}

// Wire bytes
const (
	ClockByte byte = 0xF8
	StartByte byte = 0xFA
	StopByte  byte = 0xFC
	SPPByte   byte = 0xF2
)

// SongPosition builds a song position pointer in wire order, LSB first.
// gomidi.SPP puts the MSB first and is only correct for 0.
func SongPosition(pos int) gomidi.Message {
	pos &= 0x3FFF
	return gomidi.Message{SPPByte, byte(pos & 0x7F), byte(pos >> 7)}
}

var (
	clockPacket  = PacketOf(gomidi.TimingClock())
	startPacket  = PacketOf(gomidi.Start())
	stopPacket   = PacketOf(gomidi.Stop())
	rewindPacket = PacketOf(SongPosition(0))
)
