// Package codec turns context values into a persistable byte form and back.
package codec

import (
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec serializes arbitrary values to bytes. Only the outermost consumer of
// a value deserializes; everything in between moves opaque bytes around.
type Codec interface {
	Marshal(value any) ([]byte, error)
	Unmarshal(data []byte) (any, error)
}

// Msgpack is the default codec.
type Msgpack struct{}

func (Msgpack) Marshal(value any) ([]byte, error) {
	raw, err := msgpack.Marshal(value)
	if err != nil {
		return nil, errors.Wrap(err, "unable to marshal value")
	}

	return raw, nil
}

func (Msgpack) Unmarshal(data []byte) (any, error) {
	var value any

	err := msgpack.Unmarshal(data, &value)
	if err != nil {
		return nil, errors.Wrap(err, "unable to unmarshal value")
	}

	return value, nil
}

// ErrRawValue is returned by Raw when given anything but a byte slice.
var ErrRawValue = errors.New("raw codec only accepts byte slices")

// Raw passes byte slices through untouched, for callers that manage their own
// encoding.
type Raw struct{}

func (Raw) Marshal(value any) ([]byte, error) {
	raw, ok := value.([]byte)
	if !ok {
		return nil, errors.Wrapf(ErrRawValue, "got %T", value)
	}

	return raw, nil
}

func (Raw) Unmarshal(data []byte) (any, error) {
	return data, nil
}
