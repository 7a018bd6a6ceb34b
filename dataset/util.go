package dataset

import (
	"fmt"
	"path/filepath"
)

// Auto-discovery helpers

// FindCSV returns a glob pattern covering the CSV files in dir, verifying
// at least one exists.
func FindCSV(dir string) (string, error) {
	pattern := filepath.Join(dir, "*.csv")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no CSV files found in %s", dir)
	}
	return pattern, nil
}

// FindFasta returns the first FASTA file in dir.
func FindFasta(dir string) (string, error) {
	for _, ext := range []string{"*.fasta", "*.fa"} {
		matches, err := filepath.Glob(filepath.Join(dir, ext))
		if err != nil {
			return "", err
		}
		if len(matches) > 0 {
			return matches[0], nil
		}
	}
	return "", fmt.Errorf("no FASTA files found in %s", dir)
}
