package conditions

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/afero"
)

// ColumnSettings records how a data file's columns are interpreted.
type ColumnSettings struct {
	IndexColumn     string      `json:"index_col"`
	SampleColumns   []Condition `json:"sample_cols"`
	MetadataColumns []string    `json:"metadata_cols"`
}

// SettingsPath is where the settings for dataFile are kept.
func SettingsPath(dataFile string) string {
	return dataFile + ".json"
}

// SaveSettings writes settings next to dataFile.
func SaveSettings(fs afero.Fs, dataFile string, s ColumnSettings) error {
	if s.SampleColumns == nil {
		s.SampleColumns = []Condition{}
	}
	if s.MetadataColumns == nil {
		s.MetadataColumns = []string{}
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode column settings: %w", err)
	}
	if err := afero.WriteFile(fs, SettingsPath(dataFile), data, 0o644); err != nil {
		return fmt.Errorf("write column settings: %w", err)
	}
	return nil
}

// LoadSettings reads the settings stored next to dataFile. A file without
// settings yields the zero value.
func LoadSettings(fs afero.Fs, dataFile string) (ColumnSettings, error) {
	data, err := afero.ReadFile(fs, SettingsPath(dataFile))
	if errors.Is(err, os.ErrNotExist) {
		return ColumnSettings{}, nil
	}
	if err != nil {
		return ColumnSettings{}, fmt.Errorf("read column settings: %w", err)
	}
	var s ColumnSettings
	if err := json.Unmarshal(data, &s); err != nil {
		return ColumnSettings{}, fmt.Errorf("decode column settings: %w", err)
	}
	return s, nil
}
