// Package vocab loads and serves the source (NAMASTE/AYUSH) and classification
// (ICD-11) vocabularies.
package vocab

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"namaste-icd-mapper/models"
)

var ErrDatasetNotFound = errors.New("dataset file not found")

// ValidationError reports the first invalid entry of a dataset.
type ValidationError struct {
	Path  string
	Index int
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: entry %d has empty %s", e.Path, e.Index, e.Field)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrDatasetNotFound, path)
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// LoadAyushCodes reads a JSON array of AYUSH entries. Entries without code or
// name reject the whole dataset; a missing system defaults to Ayurveda.
func LoadAyushCodes(path string) ([]models.AyushCode, error) {
	var codes []models.AyushCode
	if err := readJSON(path, &codes); err != nil {
		return nil, err
	}
	for i := range codes {
		switch {
		case codes[i].Code == "":
			return nil, &ValidationError{Path: path, Index: i, Field: "code"}
		case codes[i].Name == "":
			return nil, &ValidationError{Path: path, Index: i, Field: "name"}
		}
		if codes[i].System == "" {
			codes[i].System = models.DefaultSystem
		}
	}
	return codes, nil
}

// LoadICDCodes reads a JSON array of ICD-11 entries.
func LoadICDCodes(path string) ([]models.ICDCode, error) {
	var codes []models.ICDCode
	if err := readJSON(path, &codes); err != nil {
		return nil, err
	}
	for i := range codes {
		switch {
		case codes[i].Code == "":
			return nil, &ValidationError{Path: path, Index: i, Field: "code"}
		case codes[i].Name == "":
			return nil, &ValidationError{Path: path, Index: i, Field: "name"}
		}
	}
	return codes, nil
}
