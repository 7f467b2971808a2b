package payload

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// Record is either kind of line, told apart by Type and Tags.
type Record struct {
	Path    string   `json:"path"`
	Type    string   `json:"type,omitempty"`
	Content string   `json:"content,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// IsContext reports whether r is a context record.
func (r Record) IsContext() bool {
	return r.Type == ContextType
}

// ReadFile calls fn for every record in the artifact at path.
func ReadFile(path string, fn func(Record) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	dec := json.NewDecoder(br)
	for line := 1; dec.More(); line++ {
		var r Record
		if err := dec.Decode(&r); err != nil {
			return fmt.Errorf("%s: record %d: %w", path, line, err)
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}
