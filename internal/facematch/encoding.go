// Package facematch holds the face template format and the matching rules
// used to identify an employee from a captured frame.
package facematch

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	// EncodingLen is the number of components in a face template.
	EncodingLen = 128

	// EncodingVersion is written as the first byte of every stored template.
	EncodingVersion byte = 1

	headerLen = 3
)

var (
	ErrEncodingVersion = errors.New("unsupported encoding version")
	ErrEncodingLength  = errors.New("encoding length mismatch")
)

// Encoding is a face template: a fixed-length vector describing one face.
type Encoding []float64

// Validate checks the template has the expected number of finite components.
func (e Encoding) Validate() error {
	if len(e) != EncodingLen {
		return fmt.Errorf("%w: got %d, want %d", ErrEncodingLength, len(e), EncodingLen)
	}
	for i, v := range e {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("encoding component %d is not finite", i)
		}
	}
	return nil
}

// Distance is the Euclidean distance between two templates. Templates of
// different length are infinitely far apart.
func (e Encoding) Distance(other Encoding) float64 {
	if len(e) != len(other) || len(e) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for i := range e {
		d := e[i] - other[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// MarshalBinary encodes the template as version byte, big-endian uint16
// length, then little-endian float64 components.
func (e Encoding) MarshalBinary() ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	buf := make([]byte, headerLen+8*len(e))
	buf[0] = EncodingVersion
	binary.BigEndian.PutUint16(buf[1:headerLen], uint16(len(e)))
	for i, v := range e {
		binary.LittleEndian.PutUint64(buf[headerLen+8*i:], math.Float64bits(v))
	}
	return buf, nil
}

// UnmarshalBinary decodes a template written by MarshalBinary.
func (e *Encoding) UnmarshalBinary(data []byte) error {
	if len(data) < headerLen {
		return fmt.Errorf("%w: %d byte header", ErrEncodingLength, len(data))
	}
	if data[0] != EncodingVersion {
		return fmt.Errorf("%w: %d", ErrEncodingVersion, data[0])
	}
	n := int(binary.BigEndian.Uint16(data[1:headerLen]))
	if n != EncodingLen || len(data) != headerLen+8*n {
		return fmt.Errorf("%w: header says %d, payload is %d bytes", ErrEncodingLength, n, len(data)-headerLen)
	}
	out := make(Encoding, n)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[headerLen+8*i:]))
	}
	*e = out
	return nil
}
