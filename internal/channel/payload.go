package channel

import (
	"encoding/binary"
	"errors"
)

// Argument batches travel as a TLV sequence: one string field per argument,
// in batch order. Field IDs and type codes are part of the wire contract.

const fieldHeaderLen = 7

const (
	FieldArg   uint16 = 1
	FieldError uint16 = 2

	TypeString uint8 = 6
)

var (
	ErrShortFieldHeader = errors.New("channel: short tlv field header")
	ErrShortFieldValue  = errors.New("channel: short tlv field value")
	ErrBadFieldType     = errors.New("channel: unexpected tlv field type")
)

// Field is one decoded TLV field.
type Field struct {
	ID    uint16
	Type  uint8
	Value []byte
}

func EncodeField(f Field) []byte {
	buf := make([]byte, fieldHeaderLen+len(f.Value))
	binary.BigEndian.PutUint16(buf[0:2], f.ID)
	buf[2] = f.Type
	binary.BigEndian.PutUint32(buf[3:7], uint32(len(f.Value)))
	copy(buf[7:], f.Value)
	return buf
}

func DecodeFields(payload []byte) ([]Field, error) {
	fields := make([]Field, 0)
	i := 0
	for i < len(payload) {
		if len(payload)-i < fieldHeaderLen {
			return nil, ErrShortFieldHeader
		}
		id := binary.BigEndian.Uint16(payload[i : i+2])
		typeID := payload[i+2]
		l := binary.BigEndian.Uint32(payload[i+3 : i+7])
		i += fieldHeaderLen
		if uint32(len(payload)-i) < l {
			return nil, ErrShortFieldValue
		}
		val := make([]byte, l)
		copy(val, payload[i:i+int(l)])
		i += int(l)
		fields = append(fields, Field{ID: id, Type: typeID, Value: val})
	}
	return fields, nil
}

// EncodeArgs packs one argument batch into a TLV payload.
// An empty batch encodes to an empty payload; both are legal.
func EncodeArgs(batch []string) []byte {
	out := make([]byte, 0)
	for _, arg := range batch {
		out = append(out, EncodeField(Field{ID: FieldArg, Type: TypeString, Value: []byte(arg)})...)
	}
	return out
}

// DecodeArgs unpacks a TLV payload into an argument batch, preserving order.
// Unknown field IDs are skipped so newer writers stay readable.
func DecodeArgs(payload []byte) ([]string, error) {
	fields, err := DecodeFields(payload)
	if err != nil {
		return nil, err
	}
	batch := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.ID != FieldArg {
			continue
		}
		if f.Type != TypeString {
			return nil, ErrBadFieldType
		}
		batch = append(batch, string(f.Value))
	}
	return batch, nil
}

// EncodeError packs an error message for an ack frame with FlagIsError set.
func EncodeError(msg string) []byte {
	return EncodeField(Field{ID: FieldError, Type: TypeString, Value: []byte(msg)})
}

// DecodeError extracts the error message from an error ack payload.
func DecodeError(payload []byte) (string, error) {
	fields, err := DecodeFields(payload)
	if err != nil {
		return "", err
	}
	for _, f := range fields {
		if f.ID == FieldError && f.Type == TypeString {
			return string(f.Value), nil
		}
	}
	return "", nil
}
