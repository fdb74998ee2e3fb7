// Package charset decodes Oracle character-set-encoded column bytes into
// Unicode, per spec.md §4.3's CharacterSet collaborator contract. One
// Decoder implementation exists per supported Oracle character set, per
// original_source/src/CharacterSet.cpp's family-of-decoders shape, rather
// than a single switch statement.
package charset

import (
	"unicode/utf8"

	"github.com/openlogreplicator/analyzer/internal/ops"
)

// UnicodeUnknownCharacter is returned in place of a code point Decode could
// not resolve; it is the Unicode replacement character, matching the
// original's UNICODE_UNKNOWN_CHARACTER constant.
const UnicodeUnknownCharacter rune = utf8.RuneError

// BadChar is the structured warning raised when Decode cannot resolve a
// byte sequence to a code point. It records up to six offending bytes, per
// spec.md §4.3 and the original's badChar(byte1..byte6) overload family.
type BadChar struct {
	Set   string
	Bytes []byte
}

func (b *BadChar) Error() string {
	return "charset: cannot decode character in " + b.Set
}

// Cursor walks a byte slice one character at a time, the same non-owning
// borrowed-view style RedoLogRecord uses over its LWN arena (spec.md §3).
type Cursor struct {
	Data []byte
	Pos  int
}

func (c *Cursor) remaining() int {
	return len(c.Data) - c.Pos
}

func (c *Cursor) peek(n int) []byte {
	if c.remaining() < n {
		return c.Data[c.Pos:]
	}
	return c.Data[c.Pos : c.Pos+n]
}

// Decoder decodes one character set's bytes into Unicode code points.
// Decode consumes at least one byte from cur and returns either a valid
// code point or a *BadChar, per spec.md §4.3:
// `decode(byteCursor) → unicodeCodepoint | BadChar`.
type Decoder interface {
	Name() string
	Decode(cur *Cursor) (rune, error)
}

// registry maps Oracle character-set names to their Decoder.
var registry = map[string]Decoder{}

func register(d Decoder) {
	registry[d.Name()] = d
}

// ByName looks up a registered Decoder, or returns false if unsupported.
func ByName(name string) (Decoder, bool) {
	d, ok := registry[name]
	return d, ok
}

func init() {
	register(al32UTF8{})
	register(utf8Set{})
	register(we8ISO8859P1{})
	register(us7ASCII{})
}

func badChar(name string, bs ...byte) (rune, error) {
	var cp = make([]byte, len(bs))
	copy(cp, bs)
	var bc = &BadChar{Set: name, Bytes: cp}
	ops.Warnf(ops.Position{}, "%s: unknown character bytes %x", name, cp)
	return UnicodeUnknownCharacter, bc
}

// al32UTF8 is Oracle's AL32UTF8 character set: standard UTF-8, up to 4
// bytes per code point.
type al32UTF8 struct{}

func (al32UTF8) Name() string { return "AL32UTF8" }

func (d al32UTF8) Decode(cur *Cursor) (rune, error) {
	if cur.remaining() == 0 {
		return badChar(d.Name())
	}
	var b0 = cur.Data[cur.Pos]
	var size = utf8Size(b0)
	var chunk = cur.peek(size)

	r, n := utf8.DecodeRune(chunk)
	if r == utf8.RuneError && n <= 1 {
		cur.Pos++
		return badChar(d.Name(), chunk...)
	}
	cur.Pos += n
	return r, nil
}

func utf8Size(b0 byte) int {
	switch {
	case b0&0x80 == 0x00:
		return 1
	case b0&0xE0 == 0xC0:
		return 2
	case b0&0xF0 == 0xE0:
		return 3
	case b0&0xF8 == 0xF0:
		return 4
	default:
		return 1
	}
}

// utf8Set is Oracle's plain UTF8 (3-byte max, deprecated) character set.
// Oracle's UTF8 never encodes 4-byte sequences; anything that looks like
// one is reported as a BadChar rather than silently truncated.
type utf8Set struct{}

func (utf8Set) Name() string { return "UTF8" }

func (d utf8Set) Decode(cur *Cursor) (rune, error) {
	if cur.remaining() == 0 {
		return badChar(d.Name())
	}
	var b0 = cur.Data[cur.Pos]
	if utf8Size(b0) == 4 {
		cur.Pos++
		return badChar(d.Name(), b0)
	}
	return al32UTF8{}.Decode(cur)
}

// we8ISO8859P1 is a single-byte Western European character set: every byte
// maps directly to the Latin-1 code point of the same value, so it can
// never produce a BadChar.
type we8ISO8859P1 struct{}

func (we8ISO8859P1) Name() string { return "WE8ISO8859P1" }

func (d we8ISO8859P1) Decode(cur *Cursor) (rune, error) {
	if cur.remaining() == 0 {
		return badChar(d.Name())
	}
	var b = cur.Data[cur.Pos]
	cur.Pos++
	return rune(b), nil
}

// us7ASCII is single-byte 7-bit ASCII; bytes with the high bit set are
// illegal.
type us7ASCII struct{}

func (us7ASCII) Name() string { return "US7ASCII" }

func (d us7ASCII) Decode(cur *Cursor) (rune, error) {
	if cur.remaining() == 0 {
		return badChar(d.Name())
	}
	var b = cur.Data[cur.Pos]
	if b&0x80 != 0 {
		cur.Pos++
		return badChar(d.Name(), b)
	}
	cur.Pos++
	return rune(b), nil
}

// DecodeString decodes all of data using the named character set, returning
// a Go string plus any BadChar warnings encountered (decoding continues
// past each BadChar, inserting the replacement character, per spec.md §8
// property 6: "illegal bytes yield UNKNOWN without crashing").
func DecodeString(name string, data []byte) (string, []*BadChar) {
	d, ok := ByName(name)
	if !ok {
		d = al32UTF8{}
	}

	var cur = Cursor{Data: data}
	var out []rune
	var warnings []*BadChar

	for cur.remaining() > 0 {
		r, err := d.Decode(&cur)
		out = append(out, r)
		if bc, ok := err.(*BadChar); ok {
			warnings = append(warnings, bc)
		}
	}
	return string(out), warnings
}
