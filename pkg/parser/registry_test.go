package parser

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStrategy struct {
	name  string
	mimes []string
	err   error
	calls int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) CanParse(mimeType, _ string) bool {
	for _, m := range s.mimes {
		if m == mimeType {
			return true
		}
	}
	return false
}

func (s *stubStrategy) Parse(_ context.Context, in Input) (*Output, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &Output{MarkdownContent: s.name + ":" + string(in.Document.Content)}, nil
}

// extensionStrategy matches on the filename extension only.
type extensionStrategy struct {
	stubStrategy
	ext string
}

func (s *extensionStrategy) CanParse(_, filename string) bool {
	return strings.HasSuffix(filename, s.ext)
}

func TestRegistry_SelectByExtensionWithoutMime(t *testing.T) {
	byExt := &extensionStrategy{stubStrategy: stubStrategy{name: "ext"}, ext: ".xyz"}
	r := NewRegistry(nil)
	require.NoError(t, r.Register(&stubStrategy{name: "text", mimes: []string{MimeText}}, DefaultConfig))
	require.NoError(t, r.Register(byExt, DefaultConfig))

	got, err := r.Select("", "data.xyz")
	require.NoError(t, err)
	assert.Equal(t, "ext", got.Name())

	_, err = r.Select("", "data.unknown")
	var unsupported *UnsupportedDocumentTypeError
	assert.ErrorAs(t, err, &unsupported)
}

func TestRegistry_Register_DuplicateName(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(&stubStrategy{name: "a"}, DefaultConfig))
	assert.Error(t, r.Register(&stubStrategy{name: "a"}, DefaultConfig))
}

func TestRegistry_Select(t *testing.T) {
	first := &stubStrategy{name: "first", mimes: []string{MimeText}}
	second := &stubStrategy{name: "second", mimes: []string{MimeText, MimePDF}}
	high := &stubStrategy{name: "high", mimes: []string{MimePDF}}
	disabled := &stubStrategy{name: "disabled", mimes: []string{MimeCSV}}

	r := NewRegistry(nil)
	require.NoError(t, r.Register(first, DefaultConfig))
	require.NoError(t, r.Register(second, DefaultConfig))
	require.NoError(t, r.Register(high, Config{Priority: 10, Enabled: true}))
	require.NoError(t, r.Register(disabled, Config{Priority: 100, Enabled: false}))

	tests := []struct {
		name     string
		mime     string
		filename string
		want     string
		wantErr  bool
	}{
		{name: "registration order breaks ties", mime: MimeText, want: "first"},
		{name: "priority wins", mime: MimePDF, want: "high"},
		{name: "mime from extension", filename: "notes.TXT", want: "first"},
		{name: "mime parameters ignored", mime: "text/plain; charset=utf-8", want: "first"},
		{name: "disabled skipped", mime: MimeCSV, wantErr: true},
		{name: "unknown extension", filename: "archive.zip", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := r.Select(tt.mime, tt.filename)
			if tt.wantErr {
				var unsupported *UnsupportedDocumentTypeError
				require.ErrorAs(t, err, &unsupported)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Name())
		})
	}
}

func TestRegistry_Select_Fallback(t *testing.T) {
	r := NewRegistry(nil)
	fallback := &stubStrategy{name: "generic"}
	r.SetDefault(fallback)

	s, err := r.Select("", "archive.zip")
	require.NoError(t, err)
	assert.Equal(t, "generic", s.Name())
}

func TestRegistry_ParseDocument_ExplicitParser(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(&stubStrategy{name: "only", mimes: []string{MimeText}}, DefaultConfig))

	out, err := r.ParseDocument(context.Background(), Request{
		Document:   Document{Filename: "a.pdf", Content: []byte("x")},
		ParserName: "only",
	})
	require.NoError(t, err)
	assert.Equal(t, "only:x", out.MarkdownContent)
	assert.Equal(t, "only", out.Parser)

	_, err = r.ParseDocument(context.Background(), Request{ParserName: "missing"})
	var notFound *ParserNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.Name)
	assert.False(t, IsRetryable(err))
}

func TestRegistry_ParseDocument_LoadsBlob(t *testing.T) {
	var loaded string
	loader := func(_ context.Context, url string) ([]byte, error) {
		loaded = url
		return []byte("hello"), nil
	}
	r := NewRegistry(loader)
	require.NoError(t, r.Register(NewSimpleText(), DefaultConfig))

	out, err := r.ParseDocument(context.Background(), Request{
		Document: Document{BlobURL: "https://blob/u/documents/d.txt", Filename: "d.txt"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://blob/u/documents/d.txt", loaded)
	assert.Equal(t, "hello", out.MarkdownContent)
	assert.Equal(t, "simple-text", out.Parser)
}

func TestRegistry_ParseDocument_WrapsFailures(t *testing.T) {
	cause := errors.New("upstream timeout")
	r := NewRegistry(nil)
	require.NoError(t, r.Register(&stubStrategy{name: "flaky", mimes: []string{MimeText}, err: cause}, DefaultConfig))

	_, err := r.ParseDocument(context.Background(), Request{Document: Document{Filename: "a.txt"}})
	var failed *ParseFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "flaky", failed.Parser)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsRetryable(err))
}

func TestRegistry_ParseDocument_PermanentFailure(t *testing.T) {
	r := NewRegistry(nil)
	perm := &ParseFailedError{Parser: "p", Cause: errors.New("corrupt"), Permanent: true}
	require.NoError(t, r.Register(&stubStrategy{name: "p", mimes: []string{MimeText}, err: perm}, DefaultConfig))

	_, err := r.ParseDocument(context.Background(), Request{Document: Document{Filename: "a.txt"}})
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
}

func TestNewDefaultRegistry(t *testing.T) {
	r, err := NewDefaultRegistry(nil, "")
	require.NoError(t, err)

	names := []string{}
	for _, s := range r.Strategies() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"html", "simple-text"}, names)

	_, err = r.Select("", "report.pdf")
	var unsupported *UnsupportedDocumentTypeError
	assert.ErrorAs(t, err, &unsupported)

	r, err = NewDefaultRegistry(nil, "key")
	require.NoError(t, err)
	s, err := r.Select("", "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "llamaparse", s.Name())

	s, err = r.Select("", "archive.zip")
	require.NoError(t, err)
	assert.Equal(t, "llamaparse", s.Name(), "hosted converter is the fallback")
}
