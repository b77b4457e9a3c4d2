package feeds

import "context"

// Static emits a fixed list of URLs, such as those given on the command line.
type Static struct {
	name string
	urls []string
}

// NewStatic creates a Static source.
func NewStatic(name string, urls []string) *Static {
	return &Static{name: name, urls: append([]string(nil), urls...)}
}

// Name implements Source.
func (s *Static) Name() string { return s.name }

// Collect implements Source.
func (s *Static) Collect(ctx context.Context, emit func(string)) error {
	for _, u := range s.urls {
		if err := ctx.Err(); err != nil {
			return err
		}
		emit(u)
	}
	return nil
}
