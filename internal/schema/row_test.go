package schema

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func lenPrefixedField(fields ...[]byte) []byte {
	var out []byte
	for _, f := range fields {
		var length = make([]byte, 2)
		binary.LittleEndian.PutUint16(length, uint16(len(f)))
		out = append(out, length...)
		out = append(out, f...)
	}
	return out
}

func TestDecodeOracleNumberPositive(t *testing.T) {
	n, err := decodeOracleNumber([]byte{0xC1, 0x02})
	require.NoError(t, err)
	require.Equal(t, float64(1), n)

	n, err = decodeOracleNumber([]byte{0xC1, 0x2A})
	require.NoError(t, err)
	require.Equal(t, float64(41), n)
}

func TestDecodeOracleNumberZero(t *testing.T) {
	n, err := decodeOracleNumber([]byte{0x80})
	require.NoError(t, err)
	require.Equal(t, float64(0), n)
}

func TestDecodeOracleNumberNegative(t *testing.T) {
	// -1 is encoded as exponent byte 0x3E, mantissa digit 100, terminator 0x66.
	n, err := decodeOracleNumber([]byte{0x3E, 0x64, 0x66})
	require.NoError(t, err)
	require.Equal(t, float64(-1), n)
}

func TestDecodeRowNullColumn(t *testing.T) {
	var columns = []Column{
		{Name: "ID", Number: 1, TypeCode: TypeNumber},
		{Name: "NAME", Number: 2, TypeCode: TypeVarchar2},
	}
	var rowData = lenPrefixedField([]byte{0xC1, 0x02})
	var nullsDelta = []byte{0x02} // bit 1 (NAME) set

	values, warnings := DecodeRow(rowData, nullsDelta, columns, "AL32UTF8")
	require.Empty(t, warnings)
	require.Len(t, values, 2)
	require.Equal(t, float64(1), values[0].Value)
	require.False(t, values[0].Null)
	require.True(t, values[1].Null)
}

func TestDecodeRowCharsetWarning(t *testing.T) {
	var columns = []Column{{Name: "LABEL", Number: 1, TypeCode: TypeVarchar2}}
	var rowData = lenPrefixedField([]byte{0xC3, 0x28})

	values, warnings := DecodeRow(rowData, nil, columns, "AL32UTF8")
	require.Len(t, warnings, 1)
	require.Equal(t, []byte{0xC3, 0x28}, warnings[0].Bytes)
	require.Len(t, values, 1)
}
