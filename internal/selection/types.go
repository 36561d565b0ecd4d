package selection

import "errors"

// MaxQuietSize is the largest payload accepted without a size warning.
const MaxQuietSize int64 = 8 * 1024 * 1024

var ErrNotAnImage = errors.New("not an image")

// Candidate is a file offered by the selection surface (picker, drop, upload).
type Candidate struct {
	Payload  []byte
	Name     string
	Size     int64
	MIMEType string
}

// StagedFile is an accepted image waiting for caption generation.
type StagedFile struct {
	Payload  []byte
	Name     string
	Size     int64
	MIMEType string
}

// Result is the outcome of a successful validation.
// Cleared is set when no candidate was offered; Staged is nil in that case.
type Result struct {
	Staged    *StagedFile
	Cleared   bool
	LargeFile bool
	Warning   string
}
