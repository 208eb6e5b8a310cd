package spreadsheet

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWrite(t *testing.T) {
	headers := []string{"Ticket ID", "Title", "Status"}
	rows := [][]string{
		{"TKT-000001", "Printer jammed", "Open"},
		{"TKT-000002", "VPN drops every hour", "Resolved"},
	}

	data, err := Write("Tickets Report", headers, rows)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Tickets Report"}, f.GetSheetList())

	got, err := f.GetRows("Tickets Report")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, headers, got[0])
	assert.Equal(t, rows[0], got[1])
	assert.Equal(t, rows[1], got[2])

	width, err := f.GetColWidth("Tickets Report", "B")
	require.NoError(t, err)
	assert.InDelta(t, float64(len("VPN drops every hour")+2), width, 0.01)
}

func TestWrite_CapsColumnWidth(t *testing.T) {
	long := string(bytes.Repeat([]byte("x"), 200))

	data, err := Write("Sheet", []string{"Description"}, [][]string{{long}})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	width, err := f.GetColWidth("Sheet", "A")
	require.NoError(t, err)
	assert.InDelta(t, float64(maxColWidth), width, 0.01)
}

func TestWrite_HeaderOnly(t *testing.T) {
	data, err := Write("Empty", []string{"A", "B"}, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows("Empty")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"A", "B"}}, got)
}
