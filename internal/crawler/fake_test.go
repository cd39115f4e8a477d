package crawler

import (
	"context"
	"errors"
	"time"
)

// fakeBrowser hands out one scripted session per Open.
type fakeBrowser struct {
	sessions []*fakeSession
	openErr  error
	opened   int
}

func (b *fakeBrowser) Open(ctx context.Context) (Session, error) {
	if b.openErr != nil {
		return nil, b.openErr
	}
	s := b.sessions[b.opened]
	b.opened++
	return s, nil
}

var errUnreachable = errors.New("net::ERR_NAME_NOT_RESOLVED")

type fakeSession struct {
	pages       map[string]string
	unreachable map[string]bool
	present     map[string]bool
	noNavigate  bool
	panicOnHTML bool

	current string
	typed   map[string]string
	visited []string
	closed  int
}

func newFakeSession(pages map[string]string, selectors ...string) *fakeSession {
	s := &fakeSession{
		pages:       pages,
		unreachable: map[string]bool{},
		present:     map[string]bool{},
		typed:       map[string]string{},
	}
	for _, sel := range selectors {
		s.present[sel] = true
	}
	return s
}

func (s *fakeSession) Navigate(ctx context.Context, url string) error {
	if s.unreachable[url] {
		return errUnreachable
	}
	s.current = url
	s.visited = append(s.visited, url)
	return nil
}

func (s *fakeSession) WaitFor(ctx context.Context, selector string) error {
	if s.present[selector] {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *fakeSession) Type(ctx context.Context, selector, text string) error {
	if err := s.WaitFor(ctx, selector); err != nil {
		return err
	}
	s.typed[selector] = text
	return nil
}

func (s *fakeSession) Submit(ctx context.Context, selector string, wait time.Duration) (NavOutcome, error) {
	if err := s.WaitFor(ctx, selector); err != nil {
		return SoftTimeout, err
	}
	if s.noNavigate {
		return SoftTimeout, nil
	}
	return Navigated, nil
}

func (s *fakeSession) HTML(ctx context.Context) (string, error) {
	if s.panicOnHTML {
		panic("renderer crashed")
	}
	return s.pages[s.current], nil
}

func (s *fakeSession) Close() error {
	s.closed++
	return nil
}
