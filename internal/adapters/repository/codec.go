package repository

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/okian/mimic/internal/domain/model"
)

// Blob layout:
//
//	magic "MREC" | version byte | payload | xxhash64(payload) little endian
//
// The payload is protobuf wire format for
//
//	message Sequence { repeated Event events = 1; }
//	message Event {
//	  uint64 id = 1; uint32 kind = 2; uint32 side = 3;
//	  sint64 x = 4; sint64 y = 5; uint64 elapsed_ms = 6;
//	}
const (
	blobMagic     = "MREC"
	blobVersion   = 1
	headerLen     = len(blobMagic) + 1
	checksumLen   = 8
	avgEventBytes = 16
)

const (
	fieldSequenceEvents protowire.Number = 1

	fieldEventID      protowire.Number = 1
	fieldEventKind    protowire.Number = 2
	fieldEventSide    protowire.Number = 3
	fieldEventX       protowire.Number = 4
	fieldEventY       protowire.Number = 5
	fieldEventElapsed protowire.Number = 6
)

// Encode serializes events into a self-checking blob.
func Encode(events []model.Event) []byte {
	payload := make([]byte, 0, len(events)*avgEventBytes)
	var msg []byte
	for i := range events {
		msg = appendEvent(msg[:0], &events[i])
		payload = protowire.AppendTag(payload, fieldSequenceEvents, protowire.BytesType)
		payload = protowire.AppendBytes(payload, msg)
	}

	out := make([]byte, 0, headerLen+len(payload)+checksumLen)
	out = append(out, blobMagic...)
	out = append(out, blobVersion)
	out = append(out, payload...)
	return binary.LittleEndian.AppendUint64(out, xxhash.Sum64(payload))
}

func appendEvent(b []byte, e *model.Event) []byte {
	b = protowire.AppendTag(b, fieldEventID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.ID))
	b = protowire.AppendTag(b, fieldEventKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.Kind))
	b = protowire.AppendTag(b, fieldEventSide, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.Side))
	b = protowire.AppendTag(b, fieldEventX, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(e.X)))
	b = protowire.AppendTag(b, fieldEventY, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(e.Y)))
	b = protowire.AppendTag(b, fieldEventElapsed, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.ElapsedMS))
	return b
}

// Decode parses a blob produced by Encode. Any structural problem is
// reported as ErrCorrupt.
func Decode(data []byte) ([]model.Event, error) {
	if len(data) < headerLen+checksumLen {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorrupt, len(data))
	}
	if string(data[:len(blobMagic)]) != blobMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorrupt, data[:len(blobMagic)])
	}
	if v := data[len(blobMagic)]; v != blobVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, v)
	}

	payload := data[headerLen : len(data)-checksumLen]
	want := binary.LittleEndian.Uint64(data[len(data)-checksumLen:])
	if got := xxhash.Sum64(payload); got != want {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	events := make([]model.Event, 0, len(payload)/avgEventBytes)
	for len(payload) > 0 {
		num, typ, n := protowire.ConsumeTag(payload)
		if n < 0 {
			return nil, corrupt(n)
		}
		payload = payload[n:]

		if num == fieldSequenceEvents && typ == protowire.BytesType {
			msg, m := protowire.ConsumeBytes(payload)
			if m < 0 {
				return nil, corrupt(m)
			}
			e, err := decodeEvent(msg)
			if err != nil {
				return nil, fmt.Errorf("event %d: %w", len(events), err)
			}
			events = append(events, e)
			payload = payload[m:]
			continue
		}

		m := protowire.ConsumeFieldValue(num, typ, payload)
		if m < 0 {
			return nil, corrupt(m)
		}
		payload = payload[m:]
	}
	return events, nil
}

func decodeEvent(b []byte) (model.Event, error) {
	var e model.Event
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return e, corrupt(n)
		}
		b = b[n:]

		if typ != protowire.VarintType {
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return e, corrupt(m)
			}
			b = b[m:]
			continue
		}

		v, m := protowire.ConsumeVarint(b)
		if m < 0 {
			return e, corrupt(m)
		}
		b = b[m:]

		switch num {
		case fieldEventID:
			e.ID = int64(v)
		case fieldEventKind:
			if v > math.MaxUint8 {
				return e, fmt.Errorf("%w: kind %d out of range", ErrCorrupt, v)
			}
			e.Kind = model.Kind(v)
		case fieldEventSide:
			if v > math.MaxUint8 {
				return e, fmt.Errorf("%w: side %d out of range", ErrCorrupt, v)
			}
			e.Side = model.Side(v)
		case fieldEventX:
			e.X = int(protowire.DecodeZigZag(v))
		case fieldEventY:
			e.Y = int(protowire.DecodeZigZag(v))
		case fieldEventElapsed:
			e.ElapsedMS = int64(v)
		}
	}
	if err := e.Validate(); err != nil {
		return e, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return e, nil
}

func corrupt(n int) error {
	return fmt.Errorf("%w: %w", ErrCorrupt, protowire.ParseError(n))
}
