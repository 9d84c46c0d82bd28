package main

import (
	"fmt"

	"github.com/kalambet/solace/internal/dataset"
)

func loadDatasetFile(path string) (string, error) {
	text, err := dataset.Load(path)
	if err != nil {
		return "", fmt.Errorf("loading %s: %w", path, err)
	}
	return text, nil
}
