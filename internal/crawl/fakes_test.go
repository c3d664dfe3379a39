package crawl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/brlegis/normcrawler/internal/norm"
)

// fakeFetcher scripts raw fetch results per call.
type fakeFetcher struct {
	mu      sync.Mutex
	calls   int
	handler func(call int, req FetchRequest) (FetchResponse, error)
}

func (f *fakeFetcher) Fetch(_ context.Context, req FetchRequest) (FetchResponse, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	return f.handler(call, req)
}

// passthroughExtractor treats the body itself as the extracted text.
type passthroughExtractor struct{}

func (passthroughExtractor) Extract(body []byte) string {
	return string(body)
}

type fakeHasher struct{}

func (fakeHasher) HashText(text string) string {
	return fmt.Sprintf("h-%d-%.8s", len(text), text)
}

type fakeClock struct {
	t time.Time
}

func (c fakeClock) Now() time.Time {
	return c.t
}

type fakeIndex struct {
	mu      sync.Mutex
	docs    map[string]norm.Document
	gets    int
	upserts int
	getErr  error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{docs: make(map[string]norm.Document)}
}

func (i *fakeIndex) Get(_ context.Context, docID string) (*norm.Document, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.gets++
	if i.getErr != nil {
		return nil, i.getErr
	}
	doc, ok := i.docs[docID]
	if !ok {
		return nil, nil
	}
	cp := doc
	return &cp, nil
}

func (i *fakeIndex) Upsert(_ context.Context, doc norm.Document) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.upserts++
	i.docs[doc.DocID] = doc
	return nil
}

type fakeState struct {
	mu    sync.Mutex
	m     map[string]TypeYearState
	saves int
}

func newFakeState() *fakeState {
	return &fakeState{m: make(map[string]TypeYearState)}
}

func stateKey(typeCode string, year int) string {
	return fmt.Sprintf("%s/%d", typeCode, year)
}

func (s *fakeState) Get(typeCode string, year int) TypeYearState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[stateKey(typeCode, year)]
}

func (s *fakeState) Put(typeCode string, year int, st TypeYearState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[stateKey(typeCode, year)] = st
}

func (s *fakeState) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	return nil
}

// fakeOracle answers existence from a function and optionally charges a
// budget the way the real oracle does through the client.
type fakeOracle struct {
	mu     sync.Mutex
	exists func(t norm.Target) bool
	budget *Budget
	calls  int
}

func (o *fakeOracle) Exists(_ context.Context, t norm.Target) bool {
	o.mu.Lock()
	o.calls++
	o.mu.Unlock()
	if o.budget != nil {
		if !o.budget.OK() {
			return false
		}
		o.budget.Spend(1)
	}
	return o.exists(t)
}

type fakeDiscovery struct {
	mu    sync.Mutex
	last  int
	calls int
}

func (d *fakeDiscovery) LastNumber(_ context.Context, _ string, _ int, _ int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return d.last
}

// fakeSource scripts FetchDocument results per doc ID, charging one budget
// unit per call like the real conditional fetcher.
type fakeSource struct {
	mu      sync.Mutex
	budget  *Budget
	results map[string]FetchResult
	err     error
	calls   []string
}

func (s *fakeSource) FetchDocument(_ context.Context, t norm.Target, v norm.Variant) (FetchResult, error) {
	docID := norm.DocID(t, v)
	s.mu.Lock()
	s.calls = append(s.calls, docID)
	s.mu.Unlock()
	if s.budget != nil {
		if !s.budget.OK() {
			return FetchResult{}, nil
		}
		s.budget.Spend(1)
	}
	if s.err != nil {
		return FetchResult{}, s.err
	}
	res, ok := s.results[docID]
	if !ok {
		return FetchResult{}, nil
	}
	return res, nil
}
