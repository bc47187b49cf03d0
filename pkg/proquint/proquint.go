// Copyright 2018 The Kura Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package proquint encodes integers and byte strings as pronounceable
// quintuplets of alternating consonants and vowels. asyncfs uses it to give
// readable names to binary keys that cannot be shown as file names.
package proquint

import (
	"bytes"
	"fmt"
)

var consonants = []byte("bdfghjklmnprstvz")
var vowels = []byte("aiou")

// Separator joins the words of multi-word proquints.
const Separator = '-'

// FromUint16 converts an uint16 to a proquint of alternating consonants and
// vowels as follows.
//
// Four-bits as a consonant:
//      0 1 2 3 4 5 6 7 8 9 A B C D E F
//      b d f g h j k l m n p r s t v z
//
// Two-bits as a vowel:
//      0 1 2 3
//      a i o u
//
// Whole 16-bit word, where "con" = consonant, "vo" = vowel:
//      0 1 2 3 4 5 6 7 8 9 A B C D E F
//      +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//      |con    |vo |con    |vo |con    |
//      +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
func FromUint16(i uint16) []byte {
	return appendUint16(make([]byte, 0, 5), i)
}

func appendUint16(quint []byte, i uint16) []byte {
	for j := 0; j < 5; j++ {
		if j%2 == 0 {
			quint = append(quint, consonants[i>>12])
			i <<= 4
		} else {
			quint = append(quint, vowels[i>>14])
			i <<= 2
		}
	}
	return quint
}

// FromUint32 converts an uint32 to a proquint of alternating consonants and
// vowels as follows: FromUint16(first 16 bits)-FromUint16(last 16 bits)
func FromUint32(i uint32) []byte {
	quint := appendUint16(make([]byte, 0, 11), uint16(i>>16))
	quint = append(quint, Separator)
	return appendUint16(quint, uint16(i))
}

// FromUint64 converts an uint64 to a proquint of alternating consonants and
// vowels as follows: FromUint32(first 32 bits)-FromUint32(last 32 bits)
func FromUint64(i uint64) []byte {
	quint := append(FromUint32(uint32(i>>32)), Separator)
	return append(quint, FromUint32(uint32(i))...)
}

// Parse16 decodes a single five letter word.
func Parse16(quint []byte) (uint16, error) {
	if len(quint) != 5 {
		return 0, fmt.Errorf("proquint: invalid word %q, expected 5 letters", quint)
	}

	var i uint16
	for j, c := range quint {
		if j%2 == 0 {
			k := bytes.IndexByte(consonants, c)
			if k < 0 {
				return 0, fmt.Errorf("proquint: invalid consonant %q in %q", c, quint)
			}
			i = i<<4 | uint16(k)
		} else {
			k := bytes.IndexByte(vowels, c)
			if k < 0 {
				return 0, fmt.Errorf("proquint: invalid vowel %q in %q", c, quint)
			}
			i = i<<2 | uint16(k)
		}
	}
	return i, nil
}

// ToUint16 is like Parse16 but panics on malformed input.
func ToUint16(quint []byte) uint16 {
	i, err := Parse16(quint)
	if err != nil {
		panic(err)
	}
	return i
}

func ToUint32(quint []byte) uint32 {
	if len(quint) != 5*2+1 { // Count the separator.
		panic("invalid len(quint), expected 11")
	}

	return uint32(ToUint16(quint[0:5]))<<16 + uint32(ToUint16(quint[6:]))
}

func ToUint64(quint []byte) uint64 {
	if len(quint) != 5*4+3 { // Count the separators.
		panic("invalid len(quint), expected 23")
	}
	return uint64(ToUint32(quint[0:11]))<<32 + uint64(ToUint32(quint[12:]))
}

// EncodeBytes encodes b two bytes per word, big endian, words joined by the
// separator. An odd trailing byte is padded with a zero byte; callers that
// need the exact length back must record the parity themselves.
func EncodeBytes(b []byte) []byte {
	words := (len(b) + 1) / 2
	quint := make([]byte, 0, words*6)
	for i := 0; i < len(b); i += 2 {
		if i > 0 {
			quint = append(quint, Separator)
		}
		w := uint16(b[i]) << 8
		if i+1 < len(b) {
			w |= uint16(b[i+1])
		}
		quint = appendUint16(quint, w)
	}
	return quint
}

// DecodeBytes reverses EncodeBytes. The result always has an even length.
func DecodeBytes(quint []byte) ([]byte, error) {
	if len(quint) == 0 {
		return nil, nil
	}
	if (len(quint)+1)%6 != 0 {
		return nil, fmt.Errorf("proquint: invalid length %d", len(quint))
	}

	b := make([]byte, 0, (len(quint)+1)/6*2)
	for i := 0; i < len(quint); i += 6 {
		if i > 0 && quint[i-1] != Separator {
			return nil, fmt.Errorf("proquint: expected separator at %d", i-1)
		}
		w, err := Parse16(quint[i : i+5])
		if err != nil {
			return nil, err
		}
		b = append(b, byte(w>>8), byte(w))
	}
	return b, nil
}
