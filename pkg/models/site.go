package models

import (
	"fmt"
	"strings"
)

// Site represents a website under audit.
type Site struct {
	// ID is the unique identifier for this site (>= 1).
	ID int `json:"site_id"`
	// Name is the display name of the site owner (e.g., company name).
	Name string `json:"name"`
	// URL is the absolute http(s) URL of the audited page.
	URL string `json:"url"`
	// Industry is an optional industry annotation carried to reports.
	Industry string `json:"industry,omitempty"`
	// Note is an optional free-form annotation.
	Note string `json:"note,omitempty"`
}

// Validate checks that the site has a positive ID and an absolute http(s) URL.
func (s Site) Validate() error {
	if s.ID < 1 {
		return fmt.Errorf("site %q: invalid site_id %d", s.Name, s.ID)
	}
	if !strings.HasPrefix(s.URL, "http://") && !strings.HasPrefix(s.URL, "https://") {
		return fmt.Errorf("site %d: invalid URL %q", s.ID, s.URL)
	}
	return nil
}

// ValidateSites checks a loaded site list for duplicate IDs and invalid entries.
func ValidateSites(sites []Site) error {
	seen := make(map[int]bool, len(sites))
	for _, s := range sites {
		if err := s.Validate(); err != nil {
			return err
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate site_id %d", s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}
