package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/cyear/nuc-fan/models"
)

// LoadFanConfig loads and validates the fan curves stored at filePath. A
// missing or malformed file is an error; no default curve is synthesized.
func LoadFanConfig(filePath string) (models.FanData, error) {
	jsonFile, err := os.Open(filePath)
	if err != nil {
		return models.FanData{}, fmt.Errorf("error opening config file '%s': %w", filePath, err)
	}
	defer jsonFile.Close()

	byteValue, err := io.ReadAll(jsonFile)
	if err != nil {
		return models.FanData{}, fmt.Errorf("error reading config file '%s': %w", filePath, err)
	}

	var data models.FanData
	if err := json.Unmarshal(byteValue, &data); err != nil {
		return models.FanData{}, fmt.Errorf("error parsing JSON from '%s': %w", filePath, err)
	}
	if err := data.Validate(); err != nil {
		return models.FanData{}, fmt.Errorf("config file '%s': %w", filePath, err)
	}
	return data, nil
}

// SaveFanConfig validates data and writes it to filePath as indented JSON.
func SaveFanConfig(filePath string, data models.FanData) error {
	if err := data.Validate(); err != nil {
		return err
	}
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filePath, out, 0644); err != nil {
		return fmt.Errorf("error writing config file '%s': %w", filePath, err)
	}
	return nil
}

// LoadSettings reads settings.json. Fields absent from the file keep their
// defaults and the safety fields are normalized.
func LoadSettings(filePath string) (models.Settings, error) {
	settings := models.DefaultSettings()
	data, err := os.ReadFile(filePath)
	if err != nil {
		return settings, err
	}
	if err := json.Unmarshal(data, &settings); err != nil {
		return models.DefaultSettings(), fmt.Errorf("error parsing JSON from '%s': %w", filePath, err)
	}
	return settings.Normalize(), nil
}

// SaveSettings writes settings.json.
func SaveSettings(filePath string, settings models.Settings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, data, 0644)
}
