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

package main

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
)

// Output formats.
const (
	formatNone    = "no"
	formatRaw     = "raw"
	formatASCII   = "ascii"
	formatQuoted  = "quoted"
	formatMsgpack = "msgpack"
)

func validFormat(f string) bool {
	switch f {
	case formatNone, formatRaw, formatASCII, formatQuoted, formatMsgpack:
		return true
	}
	return false
}

// writeMsg writes one payload to w in the given format.
func writeMsg(w io.Writer, format string, body []byte) error {
	bw := bufio.NewWriter(w)
	switch format {
	case formatNone:
		return nil
	case formatRaw:
		bw.Write(body)
	case formatASCII:
		for _, b := range body {
			if strconv.IsPrint(rune(b)) {
				bw.WriteByte(b)
			} else {
				bw.WriteByte('.')
			}
		}
		bw.WriteByte('\n')
	case formatQuoted:
		bw.WriteByte('"')
		for _, b := range body {
			switch b {
			case '\n':
				bw.WriteString(`\n`)
			case '\r':
				bw.WriteString(`\r`)
			case '\\':
				bw.WriteString(`\\`)
			case '"':
				bw.WriteString(`\"`)
			default:
				if strconv.IsPrint(rune(b)) {
					bw.WriteByte(b)
				} else {
					fmt.Fprintf(bw, `\x%02x`, b)
				}
			}
		}
		bw.WriteString("\"\n")
	case formatMsgpack:
		var enc []byte
		switch {
		case len(body) < 256:
			enc = []byte{0xc4, byte(len(body))}
		case len(body) < 65536:
			enc = binary.BigEndian.AppendUint16([]byte{0xc5}, uint16(len(body)))
		default:
			enc = binary.BigEndian.AppendUint32([]byte{0xc6}, uint32(len(body)))
		}
		bw.Write(enc)
		bw.Write(body)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	return bw.Flush()
}
