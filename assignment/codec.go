package assignment

import (
	"encoding/json"
	"fmt"
)

// Encode serializes an assignment for storage in a byte-valued table.
func Encode(a Assignment) ([]byte, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode assignment: %w", err)
	}
	return data, nil
}

// Decode is the inverse of Encode.
func Decode(data []byte) (Assignment, error) {
	var a Assignment
	if err := json.Unmarshal(data, &a); err != nil {
		return Assignment{}, fmt.Errorf("decode assignment: %w", err)
	}
	return a, nil
}
