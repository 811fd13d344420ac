package parser

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

type registered struct {
	strategy Strategy
	config   Config
	order    int
}

// Registry resolves strategies in priority order, falling back to
// registration order for equal priorities.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]*registered
	next     int
	fallback Strategy
	loader   ContentLoader
}

func NewRegistry(loader ContentLoader) *Registry {
	return &Registry{
		entries: make(map[string]*registered),
		loader:  loader,
	}
}

func (r *Registry) Register(s Strategy, cfg Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[s.Name()]; exists {
		return fmt.Errorf("parser with name %q is already registered", s.Name())
	}
	r.entries[s.Name()] = &registered{strategy: s, config: cfg, order: r.next}
	r.next++
	return nil
}

func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[name]; !ok {
		return false
	}
	delete(r.entries, name)
	return true
}

// SetDefault installs the strategy used when no predicate matches.
func (r *Registry) SetDefault(s Strategy) {
	r.mu.Lock()
	r.fallback = s
	r.mu.Unlock()
}

// Get returns an enabled strategy by name.
func (r *Registry) Get(name string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok || !e.config.Enabled {
		return nil, false
	}
	return e.strategy, true
}

// Select picks a strategy for the document. The MIME type is detected from
// the filename when mimeType is empty; predicates see the filename either
// way and may match on it alone.
func (r *Registry) Select(mimeType, filename string) (Strategy, error) {
	detected := baseMime(mimeType)
	if detected == "" {
		detected = MimeTypeFromFilename(filename)
	}

	for _, e := range r.enabled() {
		if e.strategy.CanParse(detected, filename) {
			return e.strategy, nil
		}
	}

	r.mu.RLock()
	fallback := r.fallback
	r.mu.RUnlock()
	if fallback != nil {
		return fallback, nil
	}

	return nil, &UnsupportedDocumentTypeError{MimeType: detected, Filename: filename}
}

// ParseDocument selects a strategy and runs it. Errors from the strategy
// surface as ParseFailedError unless they already carry a parser error type.
func (r *Registry) ParseDocument(ctx context.Context, req Request) (*Output, error) {
	var (
		strategy Strategy
		err      error
	)
	if req.ParserName != "" {
		s, ok := r.Get(req.ParserName)
		if !ok {
			return nil, &ParserNotFoundError{Name: req.ParserName}
		}
		strategy = s
	} else {
		strategy, err = r.Select(req.Document.MimeType, req.Document.Filename)
		if err != nil {
			return nil, err
		}
	}

	doc := req.Document
	if doc.MimeType == "" {
		doc.MimeType = MimeTypeFromFilename(doc.Filename)
	}
	if doc.Content == nil && doc.BlobURL != "" && r.loader != nil {
		content, err := r.loader(ctx, doc.BlobURL)
		if err != nil {
			return nil, &ParseFailedError{Parser: strategy.Name(), Cause: fmt.Errorf("load document: %w", err)}
		}
		doc.Content = content
	}

	start := time.Now()
	out, err := strategy.Parse(ctx, Input{
		Document:           doc,
		UserID:             req.UserID,
		ParsingInstruction: req.ParsingInstruction,
	})
	if err != nil {
		var failed *ParseFailedError
		if errors.As(err, &failed) || !IsRetryable(err) {
			return nil, err
		}
		return nil, &ParseFailedError{Parser: strategy.Name(), Cause: err}
	}

	if out.Parser == "" {
		out.Parser = strategy.Name()
	}
	if out.ProcessingTime == 0 {
		out.ProcessingTime = time.Since(start)
	}
	return out, nil
}

// Strategies lists enabled strategies in resolution order.
func (r *Registry) Strategies() []Strategy {
	entries := r.enabled()
	out := make([]Strategy, len(entries))
	for i, e := range entries {
		out[i] = e.strategy
	}
	return out
}

func (r *Registry) enabled() []*registered {
	r.mu.RLock()
	list := make([]*registered, 0, len(r.entries))
	for _, e := range r.entries {
		if e.config.Enabled {
			list = append(list, e)
		}
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].config.Priority != list[j].config.Priority {
			return list[i].config.Priority > list[j].config.Priority
		}
		return list[i].order < list[j].order
	})
	return list
}
