// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/aleerpe/internal/models"
	"github.com/desertthunder/aleerpe/internal/services"
	"github.com/desertthunder/aleerpe/internal/shared"
)

// FakeIdentity is an in-memory signed-in account with a token ledger.
type FakeIdentity struct {
	mu            sync.Mutex
	authenticated bool
	balance       int
	consumed      int
	refunded      int

	// OnBalance, when set, runs inside TokenBalance before the balance is read.
	OnBalance func()
}

// NewFakeIdentity creates a signed-in identity holding balance tokens.
func NewFakeIdentity(balance int) *FakeIdentity {
	return &FakeIdentity{authenticated: true, balance: balance}
}

// SignOut makes the identity anonymous.
func (f *FakeIdentity) SignOut() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authenticated = false
}

func (f *FakeIdentity) IsAuthenticated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authenticated
}

func (f *FakeIdentity) TokenBalance() (int, error) {
	if f.OnBalance != nil {
		f.OnBalance()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.authenticated {
		return 0, shared.ErrUnauthorized
	}
	return f.balance, nil
}

func (f *FakeIdentity) ConsumeToken() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.authenticated {
		return 0, shared.ErrUnauthorized
	}
	if f.balance <= 0 {
		return 0, shared.ErrQuotaExhausted
	}
	f.balance--
	f.consumed++
	return f.balance, nil
}

func (f *FakeIdentity) RefundToken() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balance++
	f.refunded++
	return f.balance, nil
}

// Balance returns the current balance without any checks.
func (f *FakeIdentity) Balance() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance
}

// Consumed returns how many tokens were spent.
func (f *FakeIdentity) Consumed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.consumed
}

// Refunded returns how many tokens were given back.
func (f *FakeIdentity) Refunded() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refunded
}

// FakeGateway is a scripted [services.Gateway].
//
// Translations and scripts are looked up by page reference. ByLanguage overrides Translations for one target
// language. A reference listed in Fail returns an error.
// When Hold is set, every call blocks until a value is sent on it or the context ends.
type FakeGateway struct {
	mu           sync.Mutex
	Translations map[string][]models.TranslationResult
	ByLanguage   map[models.Language]map[string][]models.TranslationResult
	Scripts      map[string]string
	Fail         map[string]error
	Hold         chan struct{}
	calls        []string
}

// NewFakeGateway creates an empty scripted gateway.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		Translations: make(map[string][]models.TranslationResult),
		ByLanguage:   make(map[models.Language]map[string][]models.TranslationResult),
		Scripts:      make(map[string]string),
		Fail:         make(map[string]error),
	}
}

func (g *FakeGateway) Name() string { return "fake" }

func (g *FakeGateway) TranslatePage(ctx context.Context, page models.PageImage, lang models.Language) ([]models.TranslationResult, error) {
	if err := g.enter(ctx, page.Ref); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err, ok := g.Fail[page.Ref]; ok {
		return nil, err
	}
	if results, ok := g.ByLanguage[lang][page.Ref]; ok {
		return results, nil
	}
	return g.Translations[page.Ref], nil
}

func (g *FakeGateway) NarratePage(ctx context.Context, page models.PageImage, lang models.Language) (string, error) {
	if err := g.enter(ctx, page.Ref); err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err, ok := g.Fail[page.Ref]; ok {
		return "", err
	}
	return g.Scripts[page.Ref], nil
}

func (g *FakeGateway) enter(ctx context.Context, ref string) error {
	g.mu.Lock()
	g.calls = append(g.calls, ref)
	hold := g.Hold
	g.mu.Unlock()

	if hold == nil {
		return nil
	}
	select {
	case <-hold:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Calls returns the page references requested so far, in order.
func (g *FakeGateway) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

// FakePages loads page references without any I/O. References listed in Fail cannot be loaded.
type FakePages struct {
	Fail map[string]bool
}

func (p *FakePages) Load(ctx context.Context, ref string) (models.PageImage, error) {
	if p != nil && p.Fail[ref] {
		return models.PageImage{}, fmt.Errorf("page %s not found", ref)
	}
	return models.PageImage{Ref: ref, Data: []byte(ref), MIMEType: "image/png"}, nil
}

// ManualSynth is a [services.Synthesizer] whose callbacks are fired by the test.
//
// Every utterance is recorded. Start, End and Fail fire the callbacks of a recorded utterance regardless of whether
// it was stopped, which lets tests deliver late callbacks from superseded utterances.
type ManualSynth struct {
	mu         sync.Mutex
	utterances []services.Utterance
	live       []bool
	stops      int
	paused     bool
	SpeakErr   map[string]error // keyed by utterance text
	PauseErr   error            // returned by Pause, which then leaves the utterance playing

	// EndOnStop makes Stop deliver OnEnd of the stopped utterance on another goroutine,
	// like backends that report cancelled speech as finished.
	EndOnStop bool
}

// NewManualSynth creates an idle manual synthesizer.
func NewManualSynth() *ManualSynth {
	return &ManualSynth{SpeakErr: make(map[string]error)}
}

func (s *ManualSynth) Speak(u services.Utterance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.SpeakErr[u.Text]; ok {
		return err
	}
	for i := range s.live {
		s.live[i] = false
	}
	s.utterances = append(s.utterances, u)
	s.live = append(s.live, true)
	s.paused = false
	return nil
}

func (s *ManualSynth) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	s.paused = false
	for i := range s.live {
		if s.live[i] && s.EndOnStop && s.utterances[i].OnEnd != nil {
			go s.utterances[i].OnEnd()
		}
		s.live[i] = false
	}
}

func (s *ManualSynth) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PauseErr != nil {
		return s.PauseErr
	}
	s.paused = true
	return nil
}

func (s *ManualSynth) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	return nil
}

// Utterances returns every utterance dispatched so far.
func (s *ManualSynth) Utterances() []services.Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]services.Utterance(nil), s.utterances...)
}

// Texts returns the text of every dispatched utterance.
func (s *ManualSynth) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	texts := make([]string, len(s.utterances))
	for i, u := range s.utterances {
		texts[i] = u.Text
	}
	return texts
}

// Live returns how many utterances have been dispatched and neither stopped nor replaced.
func (s *ManualSynth) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.live {
		if l {
			n++
		}
	}
	return n
}

// Stops returns how many times Stop was called.
func (s *ManualSynth) Stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

// Paused reports whether the synthesizer is paused.
func (s *ManualSynth) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Last returns the index of the latest utterance, or -1.
func (s *ManualSynth) Last() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.utterances) - 1
}

// Start fires OnStart of utterance i.
func (s *ManualSynth) Start(i int) {
	if u, ok := s.at(i); ok && u.OnStart != nil {
		u.OnStart()
	}
}

// End fires OnEnd of utterance i.
func (s *ManualSynth) End(i int) {
	s.mu.Lock()
	if i >= 0 && i < len(s.live) {
		s.live[i] = false
	}
	s.mu.Unlock()
	if u, ok := s.at(i); ok && u.OnEnd != nil {
		u.OnEnd()
	}
}

// Fail fires OnError of utterance i.
func (s *ManualSynth) Fail(i int, err error) {
	s.mu.Lock()
	if i >= 0 && i < len(s.live) {
		s.live[i] = false
	}
	s.mu.Unlock()
	if u, ok := s.at(i); ok && u.OnError != nil {
		u.OnError(err)
	}
}

func (s *ManualSynth) at(i int) (services.Utterance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.utterances) {
		return services.Utterance{}, false
	}
	return s.utterances[i], true
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
