package service

import (
	"fmt"
	"strings"
)

// ValidationError reports a malformed request. Optional per-line details let
// BOM uploads recover item by item instead of failing wholesale.
type ValidationError struct {
	Message string
	Lines   []LineError
}

// LineError names one rejected BOM line.
type LineError struct {
	LineNo int    `json:"line_no"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	if len(e.Lines) == 0 {
		return e.Message
	}
	parts := make([]string, len(e.Lines))
	for i, l := range e.Lines {
		parts[i] = fmt.Sprintf("line %d: %s", l.LineNo, l.Reason)
	}
	return e.Message + ": " + strings.Join(parts, "; ")
}

// IncompleteMappingError blocks a PCF run: the named lines have no usable
// mapping. The caller can route straight to the review API.
type IncompleteMappingError struct {
	ProductID string
	LineNos   []int
}

func (e *IncompleteMappingError) Error() string {
	return fmt.Sprintf("product %s has %d unresolved BOM line item(s); review required before PCF", e.ProductID, len(e.LineNos))
}
