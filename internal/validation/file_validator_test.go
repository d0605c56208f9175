package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolpulse/internal/shared/testutil"
)

func TestValidateWorkbookName(t *testing.T) {
	v := NewFileValidator(testutil.DiscardLogger())

	tests := []struct {
		name    string
		file    string
		wantErr error
	}{
		{"xlsx", "schools.xlsx", nil},
		{"upper case", "SCHOOLS.XLSX", nil},
		{"macro workbook", "schools.xlsm", nil},
		{"nested path", "uploads/2024/schools.xlsx", nil},
		{"legacy xls", "schools.xls", ErrUnsupportedType},
		{"csv", "schools.csv", ErrUnsupportedType},
		{"no extension", "schools", ErrUnsupportedType},
		{"lock file", "~$schools.xlsx", ErrTemporaryFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateWorkbookName(tt.file)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateWorkbookContent(t *testing.T) {
	v := NewFileValidator(nil)

	assert.NoError(t, v.ValidateWorkbookContent([]byte("PK\x03\x04rest")))
	assert.ErrorIs(t, v.ValidateWorkbookContent([]byte("PK")), ErrNotWorkbook)
	assert.ErrorIs(t, v.ValidateWorkbookContent([]byte("<html>")), ErrNotWorkbook)
	assert.ErrorIs(t, v.ValidateWorkbookContent(nil), ErrNotWorkbook)
}

func TestValidateExcelFile(t *testing.T) {
	dir := t.TempDir()
	v := NewFileValidator(testutil.DiscardLogger())

	good := filepath.Join(dir, "good.xlsx")
	require.NoError(t, os.WriteFile(good, []byte("PK\x03\x04...."), 0o644))
	assert.NoError(t, v.ValidateExcelFile(good))

	text := filepath.Join(dir, "text.xlsx")
	require.NoError(t, os.WriteFile(text, []byte("School,P1\n"), 0o644))
	assert.ErrorIs(t, v.ValidateExcelFile(text), ErrNotWorkbook)

	short := filepath.Join(dir, "short.xlsx")
	require.NoError(t, os.WriteFile(short, []byte("PK"), 0o644))
	assert.ErrorIs(t, v.ValidateExcelFile(short), ErrNotWorkbook)

	assert.ErrorIs(t, v.ValidateExcelFile(filepath.Join(dir, "missing.xlsx")), ErrFileUnreadable)

	folder := filepath.Join(dir, "folder.xlsx")
	require.NoError(t, os.Mkdir(folder, 0o755))
	assert.ErrorIs(t, v.ValidateExcelFile(folder), ErrFileUnreadable)
}
