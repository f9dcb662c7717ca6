package blog

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError lists rejected input fields with a message each.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// DuplicateError means an article for the video already exists.
type DuplicateError struct {
	VideoID    string
	ExistingID int64
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("video %s is already saved as article %d", e.VideoID, e.ExistingID)
}
