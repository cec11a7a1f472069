// internal/protocol/framing.go
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// headerSize is the fixed size of the bulk transfer header.
	headerSize = 12

	// Message kinds carried in byte 0 of an outbound header.
	msgCommandOut = 1 // send a device-dependent command
	msgRequestIn  = 2 // request a device-dependent response

	// maxResponsePackets bounds the reassembly loop. A device that
	// never raises EOM trips this instead of accumulating forever.
	maxResponsePackets = 4096
)

var (
	// ErrPacketLimit is returned when a response exceeds maxResponsePackets
	// without the device signalling end of message.
	ErrPacketLimit = errors.New("protocol: end of message never signalled")

	// ErrShortPacket is returned for inbound packets smaller than the header.
	ErrShortPacket = errors.New("protocol: packet shorter than header")
)

// tagCounter produces the cycling transfer tag. Tags run 1..255 and wrap
// back to 1; zero is never issued.
type tagCounter struct {
	last uint8
}

func (t *tagCounter) next() uint8 {
	t.last = t.last%255 + 1
	return t.last
}

// encodeHeader builds the 12-byte outbound header: message kind, tag,
// complemented tag, reserved byte, little-endian transfer size, EOM flag
// and three reserved bytes.
func encodeHeader(msgKind, tag uint8, size uint32, eom byte) []byte {
	buf := make([]byte, headerSize)
	buf[0] = msgKind
	buf[1] = tag
	buf[2] = ^tag
	binary.LittleEndian.PutUint32(buf[4:8], size)
	buf[8] = eom
	return buf
}

// decodeHeader extracts the message kind, tag and transfer size from an
// outbound header and verifies the tag complement.
func decodeHeader(data []byte) (msgKind, tag uint8, size uint32, err error) {
	if len(data) < headerSize {
		return 0, 0, 0, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(data))
	}
	if data[2] != ^data[1] {
		return 0, 0, 0, fmt.Errorf("protocol: tag %#02x does not match inverse %#02x", data[1], data[2])
	}
	return data[0], data[1], binary.LittleEndian.Uint32(data[4:8]), nil
}

// packCommand frames an outbound command: header with the command text
// length and EOM set, then the command bytes, a NUL terminator and zero
// padding up to a 4-byte boundary.
func packCommand(tag uint8, command []byte) []byte {
	padded := (len(command) + 1 + 3) &^ 3
	buf := make([]byte, headerSize+padded)
	copy(buf, encodeHeader(msgCommandOut, tag, uint32(len(command)), 1))
	copy(buf[headerSize:], command)
	return buf
}

// packRequest frames a request for up to size bytes of response data.
func packRequest(tag uint8, size uint32) []byte {
	return encodeHeader(msgRequestIn, tag, size, 0)
}

// parsePacket splits one inbound packet into its payload slice and the
// end-of-message flag. Bytes 4-7 carry the valid payload length, byte 8
// the EOM flag; the payload follows the header.
func parsePacket(data []byte) (payload []byte, eom bool, err error) {
	if len(data) < headerSize {
		return nil, false, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(data))
	}
	size := int(binary.LittleEndian.Uint32(data[4:8]))
	if size > len(data)-headerSize {
		return nil, false, fmt.Errorf("protocol: declared payload of %d bytes exceeds packet of %d", size, len(data))
	}
	return data[headerSize : headerSize+size], data[8] != 0, nil
}

// collectResponse reassembles a logical response from successive packets
// produced by fetch, stopping at the first packet with EOM set.
func collectResponse(fetch func() ([]byte, error)) ([]byte, error) {
	var result []byte
	for packets := 0; packets < maxResponsePackets; packets++ {
		data, err := fetch()
		if err != nil {
			return nil, err
		}

		payload, eom, err := parsePacket(data)
		if err != nil {
			return nil, err
		}

		result = append(result, payload...)
		if eom {
			return result, nil
		}
	}
	return nil, ErrPacketLimit
}
