package app

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Code ids are 21 nanoid characters from the URL-safe alphabet, giving 126 bits of randomness
// so ids cannot be guessed or enumerated.
const codeIDLength = 21

func newCodeID() (string, error) {
	id, err := gonanoid.New(codeIDLength)
	if err != nil {
		return "", fmt.Errorf("generate code id: %w", err)
	}
	return id, nil
}

func newCodeIDs(n int) ([]string, error) {
	ids := make([]string, 0, n)
	seen := make(map[string]bool, n)
	for len(ids) < n {
		id, err := newCodeID()
		if err != nil {
			return nil, err
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}
