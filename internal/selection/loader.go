package selection

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Load reads a file from disk into a Candidate. The declared type comes
// from the extension; when the extension is unknown the content is sniffed.
func Load(path string) (*Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return FromBytes(filepath.Base(path), data), nil
}

// FromReader reads an uploaded part into a Candidate. declared may be empty.
func FromReader(name, declared string, r io.Reader) (*Candidate, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload %s: %w", name, err)
	}
	c := FromBytes(name, data)
	if declared != "" && declared != "application/octet-stream" {
		c.MIMEType = baseType(declared)
	}
	return c, nil
}

func FromBytes(name string, data []byte) *Candidate {
	mt := baseType(mime.TypeByExtension(strings.ToLower(filepath.Ext(name))))
	if mt == "" || mt == "application/octet-stream" {
		mt = baseType(mimetype.Detect(data).String())
	}
	return &Candidate{
		Payload:  data,
		Name:     name,
		Size:     int64(len(data)),
		MIMEType: mt,
	}
}

// baseType drops parameters such as "; charset=utf-8".
func baseType(t string) string {
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return strings.TrimSpace(strings.ToLower(t))
}
