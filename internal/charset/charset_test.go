package charset

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestAL32UTF8RoundTrip covers spec.md §8 property 6: decode(encode(u)) = u
// for legal byte sequences.
func TestAL32UTF8RoundTrip(t *testing.T) {
	for _, r := range []rune{'a', 'é', '€', '𐍈'} {
		var buf = []byte(string(r))
		var cur = Cursor{Data: buf}
		d, _ := ByName("AL32UTF8")
		got, err := d.Decode(&cur)
		require.NoError(t, err)
		require.Equal(t, r, got)
		require.Equal(t, len(buf), cur.Pos)
	}
}

// TestScenarioS6 reproduces spec.md §8 scenario S6 exactly.
func TestScenarioS6(t *testing.T) {
	s, warnings := DecodeString("AL32UTF8", []byte{0xC3, 0xA9})
	require.Equal(t, "é", s)
	require.Empty(t, warnings)

	s2, warnings2 := DecodeString("AL32UTF8", []byte{0xC3, 0x28})
	require.Contains(t, s2, string(UnicodeUnknownCharacter))
	require.Len(t, warnings2, 1)
	require.Equal(t, []byte{0xC3, 0x28}, warnings2[0].Bytes)
}

func TestUS7ASCIIRejectsHighBit(t *testing.T) {
	_, warnings := DecodeString("US7ASCII", []byte{'A', 0x80, 'B'})
	require.Len(t, warnings, 1)
}

func TestWE8ISO8859P1NeverFails(t *testing.T) {
	s, warnings := DecodeString("WE8ISO8859P1", []byte{0xE9}) // 'é' in Latin-1.
	require.Empty(t, warnings)
	require.Equal(t, "é", s)
}

func TestUnknownCharsetFallsBackToAL32UTF8(t *testing.T) {
	s, warnings := DecodeString("NO_SUCH_SET", []byte("hello"))
	require.Equal(t, "hello", s)
	require.Empty(t, warnings)
}
