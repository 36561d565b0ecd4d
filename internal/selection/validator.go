package selection

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// Validate decides whether a candidate can be staged.
// A nil candidate is a request to clear the selection, not an error.
func Validate(c *Candidate) (Result, error) {
	if c == nil {
		return Result{Cleared: true}, nil
	}
	if !strings.HasPrefix(c.MIMEType, "image/") {
		return Result{}, fmt.Errorf("%w: %q has type %q", ErrNotAnImage, c.Name, c.MIMEType)
	}

	res := Result{
		Staged: &StagedFile{
			Payload:  c.Payload,
			Name:     c.Name,
			Size:     c.Size,
			MIMEType: c.MIMEType,
		},
	}
	if c.Size > MaxQuietSize {
		res.LargeFile = true
		res.Warning = fmt.Sprintf("Selected image is large (%s). Upload may take longer.", HumanSize(c.Size))
	}
	return res, nil
}

// HumanSize renders a byte count the way the file label shows it.
func HumanSize(size int64) string {
	if size < 0 {
		size = 0
	}
	return humanize.IBytes(uint64(size))
}

// Label is the "name • size" text shown next to the preview.
func (f *StagedFile) Label() string {
	if f == nil {
		return "None"
	}
	return fmt.Sprintf("%s • %s", f.Name, HumanSize(f.Size))
}
