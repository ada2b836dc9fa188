package manifest

import "fmt"

// ReferenceError reports manifest rows whose filename matches no discovered file.
type ReferenceError struct {
	Sheet     string
	Reference string
	Rows      []int
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("sheet %q: %q (rows %v) references no discovered file", e.Sheet, e.Reference, e.Rows)
}

// SheetError reports a configured sheet that cannot be segmented.
type SheetError struct {
	Sheet  string
	Reason string
}

func (e *SheetError) Error() string {
	return fmt.Sprintf("sheet %q: %s", e.Sheet, e.Reason)
}
