package export

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/provwatch/provwatch/internal/models"
)

func TestWriteXLSX(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(Options{OutputDir: dir}, testLogger())

	p := classifiedProvider("p-1", "sunny days", "Seattle", models.StatusUnlicensedListed, models.TierCritical, 4.5)
	require.NoError(t, w.WriteXLSX("summary.xlsx", []models.Provider{p}))

	f, err := excelize.OpenFile(filepath.Join(dir, "summary.xlsx"))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{summarySheet}, f.GetSheetList())

	header, err := f.GetCellValue(summarySheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, "id", header)

	id, err := f.GetCellValue(summarySheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "p-1", id)

	tier, err := f.GetCellValue(summarySheet, "G2")
	require.NoError(t, err)
	assert.Equal(t, "critical", tier)

	rows, err := f.GetRows(summarySheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Len(t, rows[0], len(summaryColumns))
}
