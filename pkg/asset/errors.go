package asset

import (
	"errors"
	"fmt"
)

var (
	// ErrCrossOrigin is returned by anonymous-mode fetches of cross-origin resources that
	// do not grant this origin access.
	ErrCrossOrigin = errors.New("cross-origin resource without access grant")
	// ErrUnsupportedSource is returned for URLs with a scheme the fetcher cannot load.
	ErrUnsupportedSource = errors.New("unsupported asset source")
)

// LoadError reports a failed asset listing or fetch. It is logged and recovered from by
// falling back to built-ins or skipping the element.
type LoadError struct {
	URL      string
	Category Category
	Err      error
}

func (e *LoadError) Error() string {
	if e.Category != "" {
		return fmt.Sprintf("load %s asset %s: %v", e.Category, e.URL, e.Err)
	}
	return fmt.Sprintf("load asset %s: %v", e.URL, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
