package schema

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/openlogreplicator/analyzer/internal/charset"
)

// Column type codes, a small subset of Oracle's DATA_TYPE catalogue wide
// enough to decode the dictionary tables and common user columns this
// replica tracks (spec.md §4.3's binary-decode policy).
const (
	TypeVarchar2 = 1
	TypeNumber   = 2
	TypeDate     = 12
	TypeRaw      = 23
	TypeChar     = 96
)

// RowValue is one decoded column out of a row image, keyed by the Column
// it came from.
type RowValue struct {
	Column string
	Number int
	Null   bool
	Value  interface{}
}

// DecodeRow splits rowData into one sub-field per column and decodes each
// against its Column definition, per spec.md §4.3's binary-decode policy:
// numeric columns decode from Oracle's base-100 format, character columns
// are transcoded to UTF-8 through charsetName, everything else is returned
// as raw bytes.
//
// rowData is our own row encoding, not Oracle's native per-vector field
// framing: one 2-byte little-endian length prefix per column, in ascending
// Column.Number order, with no padding. NullsDelta carries one bit per
// column in that same order; a set bit means the column contributes no
// sub-field at all.
func DecodeRow(rowData, nullsDelta []byte, columns []Column, charsetName string) ([]RowValue, []*charset.BadChar) {
	if len(columns) == 0 {
		return nil, nil
	}
	var ordered = append([]Column(nil), columns...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Number < ordered[j].Number })

	var values = make([]RowValue, 0, len(ordered))
	var warnings []*charset.BadChar
	var pos int

	for i, col := range ordered {
		if isNull(nullsDelta, i) {
			values = append(values, RowValue{Column: col.Name, Number: col.Number, Null: true})
			continue
		}
		if pos+2 > len(rowData) {
			values = append(values, RowValue{Column: col.Name, Number: col.Number, Null: true})
			continue
		}
		var length = int(binary.LittleEndian.Uint16(rowData[pos:]))
		pos += 2
		if pos+length > len(rowData) {
			length = len(rowData) - pos
		}
		var field = rowData[pos : pos+length]
		pos += length

		values = append(values, decodeColumn(col, field, charsetName, &warnings))
	}
	return values, warnings
}

func decodeColumn(col Column, field []byte, charsetName string, warnings *[]*charset.BadChar) RowValue {
	switch col.TypeCode {
	case TypeNumber:
		n, err := decodeOracleNumber(field)
		if err != nil {
			return RowValue{Column: col.Name, Number: col.Number, Null: true}
		}
		return RowValue{Column: col.Name, Number: col.Number, Value: n}
	case TypeVarchar2, TypeChar:
		s, warns := charset.DecodeString(charsetName, field)
		*warnings = append(*warnings, warns...)
		return RowValue{Column: col.Name, Number: col.Number, Value: s}
	default:
		var cp = make([]byte, len(field))
		copy(cp, field)
		return RowValue{Column: col.Name, Number: col.Number, Value: cp}
	}
}

// isNull reports whether the column at 0-based position idx is marked null
// in the nullsDelta bitmap.
func isNull(nullsDelta []byte, idx int) bool {
	var byteIdx = idx / 8
	if byteIdx >= len(nullsDelta) {
		return false
	}
	return nullsDelta[byteIdx]&(1<<uint(idx%8)) != 0
}

// decodeOracleNumber decodes Oracle's variable-length base-100 NUMBER
// format (spec.md §4.3): a biased exponent byte followed by mantissa bytes
// each holding one base-100 digit. Positive numbers bias the exponent by
// 193 and store each digit as byte-1; negative numbers mirror the exponent
// around 62, store each digit as 101-byte, and may carry a trailing 0x66
// terminator. A lone 0x80 byte represents zero.
func decodeOracleNumber(b []byte) (float64, error) {
	if len(b) == 0 {
		return 0, fmt.Errorf("schema: empty number")
	}
	if len(b) == 1 && b[0] == 0x80 {
		return 0, nil
	}

	var negative = b[0] < 0x80
	var mantissa = b[1:]
	if negative && len(mantissa) > 0 && mantissa[len(mantissa)-1] == 0x66 {
		mantissa = mantissa[:len(mantissa)-1]
	}
	if len(mantissa) == 0 {
		return 0, fmt.Errorf("schema: number has no mantissa")
	}

	var exponent int
	if negative {
		exponent = 0x3E - int(b[0])
	} else {
		exponent = int(b[0]) - 0xC1
	}

	var value float64
	for _, m := range mantissa {
		var digit int
		if negative {
			digit = 101 - int(m)
		} else {
			digit = int(m) - 1
		}
		value = value*100 + float64(digit)
	}
	value *= math.Pow(100, float64(exponent-len(mantissa)+1))
	if negative {
		value = -value
	}
	return value, nil
}
