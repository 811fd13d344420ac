package folder

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DocumentMarker prefixes the segment carrying a document id.
const DocumentMarker = "doc:"

var ErrInvalidDocumentPath = errors.New("invalid document path")

// DocumentPath is a parsed composite path. Exactly one of DocumentID or Name
// is set. Version is the 1-based snapshot number, 0 meaning the current one.
type DocumentPath struct {
	Folder     string
	Name       string
	DocumentID string
	Version    int
}

// ParseDocumentPath accepts two shapes:
//
//	/folder/name[/vN]
//	/folder/doc:<id>[/vN]
//
// A "doc:" segment marks the document boundary and at most one version token
// may follow it.
//
// Without a marker a trailing vN segment is always a version, so a document
// named like a version token ("/docs/v2") is read as document "docs" at
// version 2. Such a document is only reachable by name with an explicit
// version ("/docs/v2/v1") or through its id ("/docs/doc:<id>").
func ParseDocumentPath(path string) (DocumentPath, error) {
	segments := splitNonEmpty(strings.ReplaceAll(strings.TrimSpace(path), "\\", "/"))
	if len(segments) == 0 {
		return DocumentPath{}, fmt.Errorf("%w: empty path", ErrInvalidDocumentPath)
	}

	for i, seg := range segments {
		if !strings.HasPrefix(seg, DocumentMarker) {
			continue
		}
		id := strings.TrimPrefix(seg, DocumentMarker)
		if id == "" {
			return DocumentPath{}, fmt.Errorf("%w: empty document id", ErrInvalidDocumentPath)
		}
		out := DocumentPath{
			Folder:     BuildPathFromSegments(segments[:i]),
			DocumentID: id,
		}
		rest := segments[i+1:]
		switch len(rest) {
		case 0:
		case 1:
			v, err := parseVersion(rest[0])
			if err != nil {
				return DocumentPath{}, err
			}
			out.Version = v
		default:
			return DocumentPath{}, fmt.Errorf("%w: unexpected segments after %q", ErrInvalidDocumentPath, seg)
		}
		return out, nil
	}

	out := DocumentPath{}
	if n := len(segments); n >= 2 && isVersionToken(segments[n-1]) {
		v, err := parseVersion(segments[n-1])
		if err != nil {
			return DocumentPath{}, err
		}
		out.Version = v
		segments = segments[:n-1]
	}
	out.Name = segments[len(segments)-1]
	out.Folder = BuildPathFromSegments(segments[:len(segments)-1])
	return out, nil
}

// String renders the path back into its canonical form.
func (p DocumentPath) String() string {
	var b strings.Builder
	b.WriteString(NormalizeFolderPath(p.Folder))
	if p.DocumentID != "" {
		b.WriteString(DocumentMarker + p.DocumentID)
	} else {
		b.WriteString(p.Name)
	}
	if p.Version > 0 {
		b.WriteString("/v" + strconv.Itoa(p.Version))
	}
	return b.String()
}

func isVersionToken(seg string) bool {
	if len(seg) < 2 || seg[0] != 'v' {
		return false
	}
	_, err := strconv.Atoi(seg[1:])
	return err == nil
}

func parseVersion(seg string) (int, error) {
	if !isVersionToken(seg) {
		return 0, fmt.Errorf("%w: bad version token %q", ErrInvalidDocumentPath, seg)
	}
	v, _ := strconv.Atoi(seg[1:])
	if v < 1 {
		return 0, fmt.Errorf("%w: version must be >= 1", ErrInvalidDocumentPath)
	}
	return v, nil
}
