// Package json is the JSON codec used across the service. It is backed by
// jsoniter in standard-library compatible mode and applies `default:"..."`
// struct tags before decoding, so request and config structs start from
// their defaults.
package json

import (
	"io"
	"reflect"

	"github.com/creasty/defaults"
	jsoniter "github.com/json-iterator/go"
)

var api = jsoniter.ConfigCompatibleWithStandardLibrary

// RawMessage is a raw encoded JSON value.
type RawMessage = jsoniter.RawMessage

type Encoder struct {
	*jsoniter.Encoder
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{Encoder: api.NewEncoder(w)}
}

type Decoder struct {
	*jsoniter.Decoder
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{Decoder: api.NewDecoder(r)}
}

// Decode applies defaults to v and then decodes the next value into it.
func (d *Decoder) Decode(v any) error {
	if err := applyDefaults(v); err != nil {
		return err
	}
	return d.Decoder.Decode(v)
}

func Marshal(v any) ([]byte, error) {
	return api.Marshal(v)
}

func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return api.MarshalIndent(v, prefix, indent)
}

func MarshalToString(v any) (string, error) {
	return api.MarshalToString(v)
}

// Unmarshal applies defaults to v and then decodes data into it.
func Unmarshal(data []byte, v any) error {
	if err := applyDefaults(v); err != nil {
		return err
	}
	return api.Unmarshal(data, v)
}

// applyDefaults only touches pointers to structs; maps, slices and
// scalars are decoded as-is.
func applyDefaults(v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return nil
	}
	return defaults.Set(v)
}
