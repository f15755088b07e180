package channel

import (
	"errors"
	"reflect"
	"testing"
)

func TestEncodeDecodeArgs(t *testing.T) {
	tests := []struct {
		name  string
		batch []string
	}{
		{name: "typical flags", batch: []string{"--open", "report.pdf", "--focus"}},
		{name: "empty batch", batch: []string{}},
		{name: "empty string argument", batch: []string{"", "next"}},
		{name: "unicode and spaces", batch: []string{"héllo wörld", "日本語", "a\tb"}},
		{name: "single argument", batch: []string{"only"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := DecodeArgs(EncodeArgs(tt.batch))
			if err != nil {
				t.Fatalf("decode args: %v", err)
			}
			if !reflect.DeepEqual(out, tt.batch) {
				t.Fatalf("batch mismatch: got=%q want=%q", out, tt.batch)
			}
		})
	}
}

func TestDecodeArgsShortHeader(t *testing.T) {
	_, err := DecodeArgs([]byte{0, 1, 6})
	if !errors.Is(err, ErrShortFieldHeader) {
		t.Fatalf("expected ErrShortFieldHeader, got %v", err)
	}
}

func TestDecodeArgsShortValue(t *testing.T) {
	field := EncodeField(Field{ID: FieldArg, Type: TypeString, Value: []byte("abcdef")})
	_, err := DecodeArgs(field[:len(field)-2])
	if !errors.Is(err, ErrShortFieldValue) {
		t.Fatalf("expected ErrShortFieldValue, got %v", err)
	}
}

func TestDecodeArgsBadFieldType(t *testing.T) {
	payload := EncodeField(Field{ID: FieldArg, Type: 1, Value: []byte{42}})
	_, err := DecodeArgs(payload)
	if !errors.Is(err, ErrBadFieldType) {
		t.Fatalf("expected ErrBadFieldType, got %v", err)
	}
}

func TestDecodeArgsSkipsUnknownFields(t *testing.T) {
	payload := EncodeField(Field{ID: 99, Type: TypeString, Value: []byte("ignored")})
	payload = append(payload, EncodeField(Field{ID: FieldArg, Type: TypeString, Value: []byte("kept")})...)

	out, err := DecodeArgs(payload)
	if err != nil {
		t.Fatalf("decode args: %v", err)
	}
	if len(out) != 1 || out[0] != "kept" {
		t.Fatalf("unexpected batch: %q", out)
	}
}

func TestEncodeDecodeError(t *testing.T) {
	msg, err := DecodeError(EncodeError("decode args: short tlv field value"))
	if err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if msg != "decode args: short tlv field value" {
		t.Fatalf("unexpected message: %q", msg)
	}
}
