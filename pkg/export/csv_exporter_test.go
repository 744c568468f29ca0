package export

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCSVRenderOrdersColumnsByHeader(t *testing.T) {
	data := Dataset{
		Headers: []string{"Day", "Period", "Subject"},
		Rows: []map[string]string{
			{"Subject": "Mathematics", "Day": "1", "Period": "2"},
			{"Day": "1", "Period": "3", "Subject": "Physics"},
		},
	}

	content, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	require.Equal(t, "\ufeffDay,Period,Subject\n1,2,Mathematics\n1,3,Physics\n", string(content))
}

func TestCSVRenderStartsWithByteOrderMark(t *testing.T) {
	content, err := NewCSVExporter().Render(Dataset{Headers: []string{"Day"}})
	require.NoError(t, err)
	require.Equal(t, []byte{0xEF, 0xBB, 0xBF}, content[:3])
}

func TestCSVRenderRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestCSVRenderFillsMissingCells(t *testing.T) {
	data := Dataset{
		Headers: []string{"Day", "Teacher"},
		Rows:    []map[string]string{{"Day": "4"}},
	}

	content, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	require.Equal(t, "\ufeffDay,Teacher\n4,\n", string(content))
}
