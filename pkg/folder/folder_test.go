package folder

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var folderShape = regexp.MustCompile(`^/(.*/)?$`)

func TestNormalizeFolderPath(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "empty", raw: "", want: "/"},
		{name: "whitespace", raw: "   ", want: "/"},
		{name: "only slashes", raw: "////", want: "/"},
		{name: "root", raw: "/", want: "/"},
		{name: "bare name", raw: "docs", want: "/docs/"},
		{name: "nested", raw: "a/b", want: "/a/b/"},
		{name: "repeated separators", raw: "//a///b//", want: "/a/b/"},
		{name: "backslashes", raw: `a\b\\c`, want: "/a/b/c/"},
		{name: "mixed separators", raw: `\a/\b\`, want: "/a/b/"},
		{name: "surrounding spaces", raw: "  /a/b  ", want: "/a/b/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeFolderPath(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Regexp(t, folderShape, got)
			assert.Equal(t, got, NormalizeFolderPath(got), "normalize must be idempotent")
		})
	}
}

func TestNormalizeFolderPath_Idempotent(t *testing.T) {
	inputs := []string{"", "a", "/a", "a/", `a\\b`, "///x//y", " spaced name /z", "ä/ö", "a/./b"}
	for _, in := range inputs {
		once := NormalizeFolderPath(in)
		assert.Equal(t, once, NormalizeFolderPath(once), in)
		assert.Regexp(t, folderShape, once, in)
	}
}

func TestFolderFromURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{name: "root", url: "https://example.com/", want: "/"},
		{name: "no path", url: "https://example.com", want: "/"},
		{name: "single segment", url: "https://example.com/page", want: "/"},
		{name: "nested", url: "https://example.com/docs/guide/intro", want: "/docs/guide/"},
		{name: "trailing slash", url: "https://example.com/docs/guide/", want: "/docs/"},
		{name: "query ignored", url: "https://example.com/a/b?x=1", want: "/a/"},
		{name: "malformed", url: "://not a url", want: "/"},
		{name: "relative", url: "docs/guide", want: "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FolderFromURL(tt.url))
		})
	}
}

func TestNameFromURL(t *testing.T) {
	assert.Equal(t, "intro", NameFromURL("https://example.com/docs/intro"))
	assert.Equal(t, "example.com", NameFromURL("https://example.com/"))
	assert.Equal(t, "", NameFromURL("nope"))
}

func TestSegmentsRoundTrip(t *testing.T) {
	inputs := []string{"", "/", "a", "/a/b/c/", `x\y`, "  /one//two  "}
	for _, in := range inputs {
		normalized := NormalizeFolderPath(in)
		segments := ParseFolderSegments(normalized)
		assert.Equal(t, normalized, BuildPathFromSegments(segments), in)
	}
}

func TestBuildPathFromSegments(t *testing.T) {
	assert.Equal(t, "/", BuildPathFromSegments(nil))
	assert.Equal(t, "/", BuildPathFromSegments([]string{"  ", ""}))
	assert.Equal(t, "/a/b/", BuildPathFromSegments([]string{"a", "   ", "b"}))
	assert.Equal(t, "/ab/c/", BuildPathFromSegments([]string{"a/b", "c"}))
}

func TestSanitizeSegment(t *testing.T) {
	assert.Equal(t, "ab", SanitizeSegment(" a/b "))
	assert.Equal(t, "", SanitizeSegment(" / "))
	assert.Equal(t, "name", SanitizeSegment("name"))
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "/a/b/doc1", Join("a/b", "doc1"))
	assert.Equal(t, "/doc1", Join("", "doc1"))
}

func TestParseDocumentPath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		want    DocumentPath
		wantErr bool
	}{
		{
			name: "folder and name",
			path: "/a/b/doc1",
			want: DocumentPath{Folder: "/a/b/", Name: "doc1"},
		},
		{
			name: "name at root",
			path: "/doc1",
			want: DocumentPath{Folder: "/", Name: "doc1"},
		},
		{
			name: "name with version",
			path: "/a/b/doc1/v3",
			want: DocumentPath{Folder: "/a/b/", Name: "doc1", Version: 3},
		},
		{
			name: "document marker",
			path: "/folder/doc:abc123",
			want: DocumentPath{Folder: "/folder/", DocumentID: "abc123"},
		},
		{
			name: "document marker with version",
			path: "/folder/doc:abc123/v2",
			want: DocumentPath{Folder: "/folder/", DocumentID: "abc123", Version: 2},
		},
		{
			name: "single v segment is a name",
			path: "/v2",
			want: DocumentPath{Folder: "/", Name: "v2"},
		},
		{
			name: "trailing version token is a version",
			path: "/docs/v2",
			want: DocumentPath{Folder: "/", Name: "docs", Version: 2},
		},
		{
			name: "version-like name with explicit version",
			path: "/docs/v2/v1",
			want: DocumentPath{Folder: "/docs/", Name: "v2", Version: 1},
		},
		{
			name: "version-like name through its id",
			path: "/docs/doc:abc",
			want: DocumentPath{Folder: "/docs/", DocumentID: "abc"},
		},
		{name: "empty", path: "  ", wantErr: true},
		{name: "empty id", path: "/a/doc:/v1", wantErr: true},
		{name: "bad version after marker", path: "/a/doc:x/latest", wantErr: true},
		{name: "zero version", path: "/a/doc:x/v0", wantErr: true},
		{name: "too many segments after marker", path: "/a/doc:x/v1/extra", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDocumentPath(tt.path)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidDocumentPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDocumentPath_String(t *testing.T) {
	p, err := ParseDocumentPath("/folder/doc:abc/v2")
	require.NoError(t, err)
	assert.Equal(t, "/folder/doc:abc/v2", p.String())

	p, err = ParseDocumentPath("a//b/doc1")
	require.NoError(t, err)
	assert.Equal(t, "/a/b/doc1", p.String())
}
