package dump

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"github.com/openlogreplicator/analyzer/internal/redolog"
	"github.com/openlogreplicator/analyzer/internal/scn"
)

func TestDumperLevelOffPrintsNothing(t *testing.T) {
	var buf bytes.Buffer
	var d = NewDumper(&buf, LevelOff, false)
	d.Record(redolog.RedoLogRecord{Kind: redolog.KindInsert})
	require.Empty(t, buf.String())
}

func TestDumperRecordLevelPrintsSummary(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	var d = NewDumper(&buf, LevelRecord, false)
	d.Record(redolog.RedoLogRecord{Kind: redolog.KindInsert, Point: scn.Point{Scn: 7}, Obj: 3})
	require.Contains(t, buf.String(), "INSERT")
	require.Contains(t, buf.String(), "obj=3")
}

func TestDumperRawLevelIncludesRowData(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	var d = NewDumper(&buf, LevelRaw, true)
	d.Record(redolog.RedoLogRecord{Kind: redolog.KindUpdate, RowData: []byte{0xAB}})
	require.Contains(t, buf.String(), "rowData=ab")
}
