package extract

import "fmt"

// ExtractionError reports an unreadable, corrupt or unsupported file.
// The pipeline logs it and skips the file.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
