package config

import (
	"fmt"
	"os"

	"vetcare/internal/domain/reminder"
)

// LoadFeedingTable reads the weight-to-grams table from a YAML file of the form
//
//	feeding_table:
//	  - {weight_kg: 5, grams: 100}
//	  - {weight_kg: 10, grams: 175}
//
// An empty path selects reminder.DefaultFeedingTable.
func LoadFeedingTable(path string) (reminder.FeedingTable, error) {
	if path == "" {
		return reminder.DefaultFeedingTable, nil
	}

	// #nosec G304 -- path comes from FEEDING_TABLE_PATH, set by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read feeding table: %w", err)
	}
	table, err := reminder.ParseFeedingTable(data)
	if err != nil {
		return nil, fmt.Errorf("feeding table %s: %w", path, err)
	}
	return table, nil
}
