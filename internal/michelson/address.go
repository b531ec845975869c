package michelson

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/mr-tron/base58"
)

// ErrInvalidAddress is returned when an address cannot be converted between
// its packed hex form and base58check.
var ErrInvalidAddress = errors.New("invalid address")

// BurnAddress is the implicit account whose balance counts as destroyed.
const BurnAddress = "tz1burnburnburnburnburnburnburjAYjjX"

const packedAddressLen = 22

type addrPrefix struct {
	human string
	tag   []byte
}

// Implicit account prefixes indexed by the curve byte of the packed form.
var implicitPrefixes = []addrPrefix{
	{"tz1", []byte{6, 161, 159}},
	{"tz2", []byte{6, 161, 161}},
	{"tz3", []byte{6, 161, 164}},
	{"tz4", []byte{6, 161, 166}},
}

var originatedPrefix = addrPrefix{"KT1", []byte{2, 90, 121}}

func checksum(b []byte) []byte {
	h := sha256.Sum256(b)
	h = sha256.Sum256(h[:])
	return h[:4]
}

func b58check(prefix, payload []byte) string {
	buf := make([]byte, 0, len(prefix)+len(payload)+4)
	buf = append(buf, prefix...)
	buf = append(buf, payload...)
	buf = append(buf, checksum(buf)...)
	return base58.Encode(buf)
}

// ReadAddress converts a packed 22-byte address (hex, optional 0x) into its
// base58check form.
func ReadAddress(h string) (string, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(h), "0x"))
	if err != nil || len(raw) != packedAddressLen {
		return "", ErrInvalidAddress
	}
	switch raw[0] {
	case 0x00:
		curve := int(raw[1])
		if curve >= len(implicitPrefixes) {
			return "", ErrInvalidAddress
		}
		return b58check(implicitPrefixes[curve].tag, raw[2:]), nil
	case 0x01:
		if raw[21] != 0x00 {
			return "", ErrInvalidAddress
		}
		return b58check(originatedPrefix.tag, raw[1:21]), nil
	}
	return "", ErrInvalidAddress
}

// WriteAddress converts a base58check address into the lowercase packed hex
// form (without 0x) that the indexer uses in keys and parameters.
func WriteAddress(addr string) (string, error) {
	raw, err := base58.Decode(addr)
	if err != nil || len(raw) != 3+20+4 {
		return "", ErrInvalidAddress
	}
	body, sum := raw[:len(raw)-4], raw[len(raw)-4:]
	if !bytes.Equal(checksum(body), sum) {
		return "", ErrInvalidAddress
	}
	tag, payload := body[:3], body[3:]
	for i, p := range implicitPrefixes {
		if bytes.Equal(tag, p.tag) {
			return hex.EncodeToString(append([]byte{0x00, byte(i)}, payload...)), nil
		}
	}
	if bytes.Equal(tag, originatedPrefix.tag) {
		out := append([]byte{0x01}, payload...)
		return hex.EncodeToString(append(out, 0x00)), nil
	}
	return "", ErrInvalidAddress
}

// ValidAddress reports whether addr is a well formed base58check address.
func ValidAddress(addr string) bool {
	_, err := WriteAddress(addr)
	return err == nil
}

// AddressOf reads an address node written either as a quoted base58 string
// or as packed bytes.
func AddressOf(n Node) (string, bool) {
	switch n.Kind {
	case KindString:
		if !ValidAddress(n.Value) {
			return "", false
		}
		return n.Value, true
	case KindBytes:
		a, err := ReadAddress(n.Value)
		if err != nil {
			return "", false
		}
		return a, true
	}
	return "", false
}

const uriSchemeLen = len("ipfs://")

// DecodeURI interprets hex bytes as UTF-8 and strips the ipfs:// scheme.
// Invalid input yields "".
func DecodeURI(h string) string {
	raw, err := hex.DecodeString(strings.TrimPrefix(h, "0x"))
	if err != nil || !utf8.Valid(raw) || len(raw) < uriSchemeLen {
		return ""
	}
	return string(raw[uriSchemeLen:])
}
