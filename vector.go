package vecwire

import "encoding/binary"

// vectorHeaderSize is the size in bytes of the L3 header: u64be vector
// followed by u64be rvector.
const vectorHeaderSize = 16

// VectorMessage is one received L3 message: the sender's vector, the
// rvector it carries (zero means "not a reply"), and the user payload.
type VectorMessage struct {
	Vector  uint64
	RVector uint64
	Payload []byte
}

func encodeVectorPayload(vector, rvector uint64, payload []byte) []byte {
	buf := make([]byte, vectorHeaderSize+len(payload))
	binary.BigEndian.PutUint64(buf[0:8], vector)
	binary.BigEndian.PutUint64(buf[8:16], rvector)
	copy(buf[vectorHeaderSize:], payload)
	return buf
}

// decodeVectorPayload splits an L2 payload into its L3 header and the
// remaining user bytes. ok is false when frame is shorter than the
// 16-byte header — a protocol violation (§7).
func decodeVectorPayload(frame []byte) (vector, rvector uint64, payload []byte, ok bool) {
	if len(frame) < vectorHeaderSize {
		return 0, 0, nil, false
	}
	vector = binary.BigEndian.Uint64(frame[0:8])
	rvector = binary.BigEndian.Uint64(frame[8:16])
	payload = frame[vectorHeaderSize:]
	return vector, rvector, payload, true
}
