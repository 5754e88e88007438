// Package catalog loads the two run inputs: the list of sites under audit
// and the criteria catalog. Both are validated fully before any evaluation
// starts, so a malformed input fails the run up front.
package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ShayCichocki/irsight/pkg/models"
)

// siteColumns is the required CSV header, in order.
var siteColumns = []string{"site_id", "name", "url", "industry", "note"}

// LoadSites reads the site list from a CSV file.
func LoadSites(path string) ([]models.Site, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sites file: %w", err)
	}
	defer f.Close()

	sites, err := ReadSites(f)
	if err != nil {
		return nil, fmt.Errorf("parse sites file %s: %w", path, err)
	}
	return sites, nil
}

// ReadSites parses CSV site rows from r. The header row is mandatory and
// must match the expected columns.
func ReadSites(r io.Reader) ([]models.Site, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	var sites []models.Site
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		id, err := strconv.Atoi(strings.TrimSpace(record[0]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid site_id %q", line, record[0])
		}
		site := models.Site{
			ID:       id,
			Name:     strings.TrimSpace(record[1]),
			URL:      strings.TrimSpace(record[2]),
			Industry: strings.TrimSpace(record[3]),
			Note:     strings.TrimSpace(record[4]),
		}
		if err := site.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		sites = append(sites, site)
	}

	if len(sites) == 0 {
		return nil, fmt.Errorf("no sites defined")
	}
	if err := models.ValidateSites(sites); err != nil {
		return nil, err
	}
	return sites, nil
}

// checkHeader verifies the CSV header matches the expected columns.
func checkHeader(header []string) error {
	if len(header) != len(siteColumns) {
		return fmt.Errorf("expected %d columns %v, got %d", len(siteColumns), siteColumns, len(header))
	}
	for i, want := range siteColumns {
		if strings.TrimSpace(strings.ToLower(header[i])) != want {
			return fmt.Errorf("column %d: expected %q, got %q", i+1, want, header[i])
		}
	}
	return nil
}
