// Package validation checks workbook files before they reach the reader.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Validation failures
var (
	ErrNotWorkbook     = errors.New("not an xlsx workbook")
	ErrTemporaryFile   = errors.New("temporary office lock file")
	ErrFileUnreadable  = errors.New("file unreadable")
	ErrUnsupportedType = errors.New("unsupported file extension")
)

// xlsx files are zip archives
var zipMagic = []byte("PK\x03\x04")

// SniffLen is how many leading bytes ValidateWorkbookContent needs
const SniffLen = 4

var workbookExtensions = map[string]bool{
	".xlsx": true,
	".xlsm": true,
}

// FileValidator validates workbook uploads and files on disk
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger.With(slog.String("component", "file_validator")),
	}
}

// ValidateWorkbookName checks the extension and rejects Office lock files such as "~$book.xlsx"
func (v *FileValidator) ValidateWorkbookName(name string) error {
	base := filepath.Base(name)
	if strings.HasPrefix(base, "~$") {
		return fmt.Errorf("%w: %s", ErrTemporaryFile, base)
	}

	ext := strings.ToLower(filepath.Ext(base))
	if !workbookExtensions[ext] {
		v.logger.Debug("rejected workbook extension",
			slog.String("file", base),
			slog.String("extension", ext))
		return fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
	return nil
}

// ValidateWorkbookContent checks the zip signature at the start of head
func (v *FileValidator) ValidateWorkbookContent(head []byte) error {
	if len(head) < SniffLen || !bytes.Equal(head[:SniffLen], zipMagic) {
		return ErrNotWorkbook
	}
	return nil
}

// ValidateExcelFile checks that path is a readable regular file holding an xlsx workbook
func (v *FileValidator) ValidateExcelFile(path string) error {
	if err := v.ValidateWorkbookName(path); err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFileUnreadable, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrFileUnreadable, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFileUnreadable, err)
	}
	defer f.Close()

	head := make([]byte, SniffLen)
	if _, err := io.ReadFull(f, head); err != nil {
		return fmt.Errorf("%w: %s", ErrNotWorkbook, path)
	}
	if err := v.ValidateWorkbookContent(head); err != nil {
		return fmt.Errorf("%w: %s", err, path)
	}

	v.logger.Debug("workbook file validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}
