// Package source turns statement files into common.Source values: page
// text, tables with positions, and region crops.
package source

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aqlanhadi/stmtscan/extractor/common"
	"github.com/spf13/viper"
)

type Options struct {
	// LicenseKey switches PDF reading to unipdf when set.
	LicenseKey string
}

// OptionsFromConfig reads unidoc.license_key.
func OptionsFromConfig() Options {
	return Options{LicenseKey: viper.GetString("unidoc.license_key")}
}

// Open picks a backend by extension. .txt files are read as pre-extracted
// text with form feeds between pages; everything else is treated as PDF.
func Open(path string, opts Options) (common.Source, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrSourceRead, err)
	}
	defer file.Close()
	return Read(file, path, opts)
}

// Read is Open for an already opened stream. name is only used for its
// extension.
func Read(r io.Reader, name string, opts Options) (common.Source, error) {
	if strings.EqualFold(filepath.Ext(name), ".txt") {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrSourceRead, err)
		}
		return FromText(string(data)), nil
	}
	if opts.LicenseKey != "" {
		return ReadUniPDF(r, opts.LicenseKey)
	}
	return ReadPDF(r)
}
