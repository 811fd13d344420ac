package parser

// NewDefaultRegistry registers the built-in strategies. The hosted converter
// is only added when an API key is configured and then also serves as the
// fallback for unmatched types.
func NewDefaultRegistry(loader ContentLoader, llamaParseKey string, opts ...LlamaParseOption) (*Registry, error) {
	r := NewRegistry(loader)

	if err := r.Register(NewHTML(), Config{Priority: 15, Enabled: true}); err != nil {
		return nil, err
	}

	if llamaParseKey != "" {
		lp, err := NewLlamaParse(llamaParseKey, opts...)
		if err != nil {
			return nil, err
		}
		if err := r.Register(lp, Config{Priority: 10, Enabled: true}); err != nil {
			return nil, err
		}
		r.SetDefault(lp)
	}

	if err := r.Register(NewSimpleText(), Config{Priority: 5, Enabled: true}); err != nil {
		return nil, err
	}
	return r, nil
}
