// Copyright 2026 The Mangos Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package wire implements the binary message header that prefixes every
// payload sent over a vega socket.
//
// The layout is fixed order, big endian, with no padding:
//
//	type(1) | topicID(8) | instanceID(8) | versionLen(4) | version |
//	hasRequestID(1) | [requestID(16)]
//
// The user payload follows the header immediately.
package wire

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/gofrs/uuid/v5"

	. "nanomsg.org/go/vega/errors"
)

// MsgType identifies the kind of message carried after the header.
type MsgType byte

// Message types.  Any other value on the wire decodes to TypeUnknown.
const (
	TypeData     MsgType = 0
	TypeRequest  MsgType = 1
	TypeResponse MsgType = 2
	TypeUnknown  MsgType = 127
)

// TypeFromByte maps a raw type byte to a MsgType.
func TypeFromByte(b byte) MsgType {
	switch MsgType(b) {
	case TypeData, TypeRequest, TypeResponse:
		return MsgType(b)
	}
	return TypeUnknown
}

func (t MsgType) String() string {
	switch t {
	case TypeData:
		return "DATA"
	case TypeRequest:
		return "DATA_REQ"
	case TypeResponse:
		return "DATA_RESP"
	}
	return "UNKNOWN"
}

// RequestID correlates a request with its responses.
type RequestID = uuid.UUID

const (
	fixedSize     = 1 + 8 + 8 + 4 + 1
	requestIDSize = 16

	// MinSize is the size of a header with an empty version and no
	// request id.
	MinSize = fixedSize
)

// Header is the decoded form of a message header.
type Header struct {
	Type         MsgType
	TopicID      uint64
	InstanceID   uint64
	Version      string
	HasRequestID bool
	RequestID    RequestID
}

// NewRequestID returns a random 128-bit request id.
func NewRequestID() RequestID {
	return uuid.Must(uuid.NewV4())
}

// Size returns the encoded length of the header.
func (h *Header) Size() int {
	sz := fixedSize + len(h.Version)
	if h.HasRequestID {
		sz += requestIDSize
	}
	return sz
}

// Validate checks that the request id presence agrees with the type.
func (h *Header) Validate() error {
	switch h.Type {
	case TypeData:
		if h.HasRequestID {
			return fmt.Errorf("%w: %s carries a request id", ErrBadHeader, h.Type)
		}
	case TypeRequest, TypeResponse:
		if !h.HasRequestID {
			return fmt.Errorf("%w: %s without request id", ErrBadHeader, h.Type)
		}
	default:
		return fmt.Errorf("%w: cannot encode type %d", ErrBadType, h.Type)
	}
	if !utf8.ValidString(h.Version) {
		return fmt.Errorf("%w: version is not valid UTF-8", ErrBadHeader)
	}
	return nil
}

// AppendTo appends the encoded header to dst and returns the extended
// slice.  Bytes already in dst are left untouched.
func (h *Header) AppendTo(dst []byte) ([]byte, error) {
	if err := h.Validate(); err != nil {
		return dst, err
	}
	dst = append(dst, byte(h.Type))
	dst = binary.BigEndian.AppendUint64(dst, h.TopicID)
	dst = binary.BigEndian.AppendUint64(dst, h.InstanceID)
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(h.Version)))
	dst = append(dst, h.Version...)
	if h.HasRequestID {
		dst = append(dst, 1)
		dst = append(dst, h.RequestID.Bytes()...)
	} else {
		dst = append(dst, 0)
	}
	return dst, nil
}

// Encode returns a new buffer holding the header followed by payload.
// The payload slice is only read.
func Encode(h *Header, payload []byte) ([]byte, error) {
	buf := make([]byte, 0, h.Size()+len(payload))
	buf, err := h.AppendTo(buf)
	if err != nil {
		return nil, err
	}
	return append(buf, payload...), nil
}

// Decode parses a header from the start of buf.  It returns the header
// and the number of bytes consumed, so the payload is buf[n:].
// An unrecognized type byte is reported as TypeUnknown, not as an error.
func Decode(buf []byte) (Header, int, error) {
	var h Header
	if len(buf) < fixedSize {
		return h, 0, ErrTooShort
	}
	h.Type = TypeFromByte(buf[0])
	h.TopicID = binary.BigEndian.Uint64(buf[1:9])
	h.InstanceID = binary.BigEndian.Uint64(buf[9:17])
	vlen := binary.BigEndian.Uint32(buf[17:21])
	pos := 21
	if uint64(vlen) > uint64(len(buf)-pos-1) {
		return h, 0, fmt.Errorf("%w: version length %d", ErrTooShort, vlen)
	}
	h.Version = string(buf[pos : pos+int(vlen)])
	pos += int(vlen)

	switch buf[pos] {
	case 0:
		pos++
	case 1:
		pos++
		if len(buf)-pos < requestIDSize {
			return h, 0, fmt.Errorf("%w: truncated request id", ErrTooShort)
		}
		h.HasRequestID = true
		copy(h.RequestID[:], buf[pos:pos+requestIDSize])
		pos += requestIDSize
	default:
		return h, 0, fmt.Errorf("%w: request id flag %d", ErrBadHeader, buf[pos])
	}
	return h, pos, nil
}
