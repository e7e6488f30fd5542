// Package model defines the documents served by the aircraft reference
// database: identifiers, shard documents, aircraft records, and the
// aggregate type table.
package model

import (
	"errors"
	"fmt"
	"strings"
)

// MaxIdentifierLength is the length of an ICAO 24-bit address in hex.
const MaxIdentifierLength = 6

// ErrInvalidIdentifier is returned for identifiers that are empty, too long,
// or contain non-hex characters.
var ErrInvalidIdentifier = errors.New("invalid icao identifier")

// NormalizeIdentifier trims and uppercases id and checks that it is a hex
// string of 1..MaxIdentifierLength characters.
func NormalizeIdentifier(id string) (string, error) {
	id = strings.ToUpper(strings.TrimSpace(id))
	if id == "" || len(id) > MaxIdentifierLength {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}
	for i := 0; i < len(id); i++ {
		if !isHex(id[i]) {
			return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
		}
	}
	return id, nil
}

// NormalizeKey uppercases a shard key.
func NormalizeKey(key string) string {
	return strings.ToUpper(key)
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F')
}
