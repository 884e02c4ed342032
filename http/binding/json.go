package binding

import (
	"bytes"

	"github.com/leeforge/pluginhub/json"
)

type DecodeOptions struct {
	useNumber             bool
	disallowUnknownFields bool
	allowEmpty            bool
}

type Option func(*DecodeOptions)

// WithUseNumber decodes numbers as json.Number instead of float64.
func WithUseNumber() Option {
	return func(opts *DecodeOptions) {
		opts.useNumber = true
	}
}

// WithDisallowUnknownFields rejects fields the target struct does not
// declare.
func WithDisallowUnknownFields() Option {
	return func(opts *DecodeOptions) {
		opts.disallowUnknownFields = true
	}
}

// WithAllowEmpty accepts a missing body as {}.
func WithAllowEmpty() Option {
	return func(opts *DecodeOptions) {
		opts.allowEmpty = true
	}
}

func applyDecodeOptions(opts ...Option) *DecodeOptions {
	options := &DecodeOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

func decodeJSON(body []byte, v any, options *DecodeOptions) error {
	decoder := json.NewDecoder(bytes.NewReader(body))
	if options.useNumber {
		decoder.Decoder.UseNumber()
	}
	if options.disallowUnknownFields {
		decoder.Decoder.DisallowUnknownFields()
	}
	return decoder.Decode(v)
}
