package wire

import "fmt"

// Decode reads the packet id header from body and decodes the remainder
// according to its schema. An unknown id returns an error, and so does a
// payload that's short of its own schema, per the codec's "decoders are
// total" contract (spec.md §4.1).
func Decode(body []byte) (PacketID, any, error) {
	r := NewReader(body)
	rawID, err := r.ReadUint16()
	if err != nil {
		return 0, nil, fmt.Errorf("decoding packet id: %w", err)
	}
	id := PacketID(rawID)

	var pkt any
	switch id {
	case PacketLoginRequest:
		pkt, err = DecodeLoginRequest(r)
	case PacketLoginResponse:
		pkt, err = DecodeLoginResponse(r)
	case PacketReconnectRequest:
		pkt, err = DecodeReconnectRequest(r)
	case PacketReconnectResponse:
		pkt, err = DecodeReconnectResponse(r)
	case PacketMoveRequest:
		pkt, err = DecodeMoveRequest(r)
	case PacketObjectSpawn:
		pkt, err = DecodeObjectSpawn(r)
	case PacketObjectDespawn:
		pkt, err = DecodeObjectDespawn(r)
	case PacketObjectUpdate:
		pkt, err = DecodeObjectUpdate(r)
	case PacketObjectSnapshot:
		pkt, err = DecodeObjectSnapshot(r)
	case PacketHeartbeat:
		pkt = &Heartbeat{}
	case PacketError:
		pkt, err = DecodeErrorPacket(r)
	default:
		return id, nil, fmt.Errorf("wire: unknown packet id %d", id)
	}
	if err != nil {
		return id, nil, err
	}
	return id, pkt, nil
}
