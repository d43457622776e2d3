package recognition

import (
	"strings"

	apperrors "github.com/ironsheep/ocrpipe/internal/errors"
)

// UnknownToken marks a final dictionary entry that emits nothing.
const UnknownToken = "<unk>"

// ParseDictionary splits newline-separated dictionary text into entries.
// Index i of the result is the character of model class i. CRLF line endings
// are accepted and a single trailing newline does not create an entry.
func ParseDictionary(data []byte) ([]string, error) {
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.NewInvalidDictionaryError("dictionary is empty")
	}

	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	if len(lines) == 0 {
		return nil, apperrors.NewInvalidDictionaryError("dictionary has no entries")
	}
	return lines, nil
}

// ValidateDictionary rejects dictionaries that cannot decode anything.
func ValidateDictionary(dict []string) error {
	if len(dict) == 0 {
		return apperrors.NewInvalidDictionaryError("dictionary has no entries")
	}
	return nil
}
