// Package serial encodes structure payloads for the Json column of a
// structure table.
package serial

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Serializer encodes and decodes structure payloads.
type Serializer interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	// Binary reports whether payloads are stored as BLOB rather than TEXT.
	Binary() bool
}

// ColumnValue returns the value bound to the Json column for data.
func ColumnValue(s Serializer, data []byte) any {
	if s.Binary() {
		return data
	}
	return string(data)
}

// ByName returns the serializer registered under name.
func ByName(name string) (Serializer, error) {
	switch name {
	case "json", "":
		return JSON{}, nil
	case "msgpack":
		return Msgpack{}, nil
	}
	return nil, fmt.Errorf("unknown serializer %q (want json or msgpack)", name)
}

// JSON stores payloads as UTF-8 JSON text without HTML escaping.
// Numbers decoded into dynamic documents stay json.Number so integers
// keep full precision.
type JSON struct{}

func (JSON) Name() string { return "json" }

func (JSON) Binary() bool { return false }

func (JSON) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode %T to JSON: %w", v, err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func (JSON) Unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode JSON into %T: %w", v, err)
	}
	return nil
}

// Msgpack stores payloads as MessagePack. Struct fields use their json tag
// names so both serializers agree on member names.
type Msgpack struct{}

func (Msgpack) Name() string { return "msgpack" }

func (Msgpack) Binary() bool { return true }

func (Msgpack) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.GetEncoder()
	enc.Reset(&buf)
	enc.SetSortMapKeys(true)
	enc.SetCustomStructTag("json")
	err := enc.Encode(v)
	msgpack.PutEncoder(enc)
	if err != nil {
		return nil, fmt.Errorf("encode %T using MsgPack: %w", v, err)
	}
	return buf.Bytes(), nil
}

func (Msgpack) Unmarshal(data []byte, v any) error {
	dec := msgpack.GetDecoder()
	dec.Reset(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	dec.UseLooseInterfaceDecoding(true)
	err := dec.Decode(v)
	msgpack.PutDecoder(dec)
	if err != nil {
		return fmt.Errorf("decode MsgPack into %T: %w", v, err)
	}
	return nil
}
