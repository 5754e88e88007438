package catalog

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/irsight/pkg/models"
)

// criteriaFile is the YAML document shape of a criteria catalog.
type criteriaFile struct {
	Criteria []models.Criterion `yaml:"criteria"`
}

// LoadCriteria reads the criteria catalog from a YAML file.
func LoadCriteria(path string) ([]models.Criterion, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open criteria file: %w", err)
	}
	defer f.Close()

	criteria, err := ReadCriteria(f)
	if err != nil {
		return nil, fmt.Errorf("parse criteria file %s: %w", path, err)
	}
	return criteria, nil
}

// ReadCriteria parses a YAML criteria catalog from r and validates every
// entry. The catalog is fixed for the duration of a run.
func ReadCriteria(r io.Reader) ([]models.Criterion, error) {
	var doc criteriaFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	if len(doc.Criteria) == 0 {
		return nil, fmt.Errorf("no criteria defined")
	}
	if err := models.ValidateCriteria(doc.Criteria); err != nil {
		return nil, err
	}
	return doc.Criteria, nil
}
