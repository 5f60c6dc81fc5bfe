package reader

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/aleerpe/internal/models"
	"github.com/desertthunder/aleerpe/internal/shared"
)

// FailedMessage is shown in the translation panel when a gateway call fails.
const FailedMessage = "Failed to translate page. Please check API Key or try again."

// Identity is the signed-in account and its token ledger.
type Identity interface {
	IsAuthenticated() bool
	// TokenBalance returns [shared.ErrUnauthorized] when nobody is signed in.
	TokenBalance() (int, error)
	// ConsumeToken atomically spends one token, returning [shared.ErrQuotaExhausted] at zero.
	ConsumeToken() (int, error)
	RefundToken() (int, error)
}

// Gateway translates a page image.
type Gateway interface {
	TranslatePage(ctx context.Context, page models.PageImage, lang models.Language) ([]models.TranslationResult, error)
}

// PageSource loads the image behind a page reference.
type PageSource interface {
	Load(ctx context.Context, ref string) (models.PageImage, error)
}

// RefundPolicy decides whether a token charged for a failed translation is given back.
type RefundPolicy int

const (
	// NoRefund keeps the token: a failed attempt still costs one.
	NoRefund RefundPolicy = iota
	// RefundOnFailure returns the token when the gateway call fails.
	RefundOnFailure
)

func (p RefundPolicy) refunds(err error) bool {
	return err != nil && p == RefundOnFailure
}

// TranslationStatus is the visible state of the translation panel.
type TranslationStatus int

const (
	TranslationIdle TranslationStatus = iota
	TranslationLoading
	TranslationReady
	TranslationFailed
)

func (s TranslationStatus) String() string {
	switch s {
	case TranslationIdle:
		return "idle"
	case TranslationLoading:
		return "loading"
	case TranslationReady:
		return "ready"
	case TranslationFailed:
		return "failed"
	default:
		return ""
	}
}

// TranslationState is what the translation panel shows for Page.
type TranslationState struct {
	Page    int
	Status  TranslationStatus
	Results []models.TranslationResult
	Message string
	Err     error
}

// flight is an outstanding gateway call for one page.
type flight struct {
	visit Ticket // page visit whose panel the result is surfaced to
}

// pageKey identifies a translation of one page into one language.
type pageKey struct {
	page int
	lang models.Language
}

// Translator mediates access to the translation gateway for one chapter.
//
// Results are cached per page and language for the lifetime of the session. At most one gateway call per page and
// language is outstanding, and each call costs exactly one token.
type Translator struct {
	mu       sync.Mutex
	chapter  *models.Chapter
	lang     models.Language
	identity Identity
	gateway  Gateway
	pages    PageSource
	refund   RefundPolicy
	logger   *log.Logger
	events   emitter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	current  int
	visits   ticker
	visit    Ticket
	state    TranslationState
	cache    map[pageKey][]models.TranslationResult
	inflight map[pageKey]*flight
	closed   bool
}

// TranslatorOpts configures a [Translator].
type TranslatorOpts struct {
	Identity Identity
	Gateway  Gateway
	Pages    PageSource
	Language models.Language
	Refund   RefundPolicy
	Logger   *log.Logger
}

// NewTranslator creates a [Translator] for chapter, starting on the first page.
//
// In-flight gateway calls are cancelled when ctx is done or the translator is closed.
func NewTranslator(ctx context.Context, chapter *models.Chapter, opts TranslatorOpts) *Translator {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	ctx, cancel := context.WithCancel(ctx)

	t := &Translator{
		chapter:  chapter,
		lang:     opts.Language,
		identity: opts.Identity,
		gateway:  opts.Gateway,
		pages:    opts.Pages,
		refund:   opts.Refund,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		cache:    make(map[pageKey][]models.TranslationResult),
		inflight: make(map[pageKey]*flight),
	}
	t.visit = t.visits.Issue()
	return t
}

// State returns the panel state for the current page.
func (t *Translator) State() TranslationState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Translator) snapshotLocked() TranslationState {
	s := t.state
	s.Results = slices.Clone(s.Results)
	return s
}

// SetLanguage changes the target language and resets the panel of the current page.
//
// Results already translated into another language stay cached under that language, and a call still running for
// the old language is no longer surfaced.
func (t *Translator) SetLanguage(lang models.Language) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if lang == t.lang {
		return
	}
	t.lang = lang
	t.visit = t.visits.Issue()
	t.state = TranslationState{Page: t.current, Status: TranslationIdle}
	t.publishLocked()
}

// Language returns the target language of new requests.
func (t *Translator) Language() models.Language {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lang
}

// PageChanged resets the panel for page. Cached results stay cached, a failure is forgotten,
// and any call still running for the previous page will no longer be surfaced.
func (t *Translator) PageChanged(page int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.current = page
	t.visit = t.visits.Issue()
	t.state = TranslationState{Page: page, Status: TranslationIdle}
	t.publishLocked()
}

// Request translates page, which must be the current page.
//
// Returns [shared.ErrUnauthorized] when nobody is signed in and [shared.ErrQuotaExhausted] when the balance is zero,
// in both cases without side effects. A cached page is returned as Ready for free. A page with a call already running
// is returned as Loading without a second charge. Otherwise one token is spent and the gateway is called in the
// background; the returned state is Loading and the outcome arrives as an [EventTranslation].
func (t *Translator) Request(page int) (TranslationState, error) {
	if t.isClosed() {
		return TranslationState{}, shared.ErrSessionClosed
	}
	if t.gateway == nil || t.pages == nil {
		return TranslationState{}, fmt.Errorf("%w: translation is not configured", shared.ErrServiceUnavailable)
	}
	if t.identity == nil || !t.identity.IsAuthenticated() {
		return TranslationState{}, shared.ErrUnauthorized
	}

	balance, err := t.identity.TokenBalance()
	if err != nil {
		return TranslationState{}, err
	}
	if balance <= 0 {
		return TranslationState{}, shared.ErrQuotaExhausted
	}

	t.mu.Lock()
	if err := t.checkPageLocked(page); err != nil {
		t.mu.Unlock()
		return TranslationState{}, err
	}

	key := pageKey{page: page, lang: t.lang}
	if results, ok := t.cache[key]; ok {
		t.state = TranslationState{Page: page, Status: TranslationReady, Results: results}
		t.publishLocked()
		defer t.mu.Unlock()
		return t.snapshotLocked(), nil
	}

	if f, ok := t.inflight[key]; ok {
		f.visit = t.visit
		t.state = TranslationState{Page: page, Status: TranslationLoading}
		t.publishLocked()
		defer t.mu.Unlock()
		return t.snapshotLocked(), nil
	}

	f := &flight{visit: t.visit}
	t.inflight[key] = f
	t.mu.Unlock()

	remaining, err := t.identity.ConsumeToken()

	t.mu.Lock()
	defer t.mu.Unlock()

	if err != nil {
		delete(t.inflight, key)
		if t.visits.Valid(f.visit) && t.state.Status == TranslationLoading {
			t.state = TranslationState{Page: page, Status: TranslationIdle}
			t.publishLocked()
		}
		if errors.Is(err, shared.ErrQuotaExhausted) {
			return TranslationState{}, shared.ErrQuotaExhausted
		}
		return TranslationState{}, err
	}

	if t.closed {
		delete(t.inflight, key)
		return TranslationState{}, shared.ErrSessionClosed
	}

	t.logger.Debug("translation requested", "page", page, "tokens", remaining)

	if t.visits.Valid(f.visit) {
		t.state = TranslationState{Page: page, Status: TranslationLoading}
		t.publishLocked()
	}

	ref, _ := t.chapter.Page(page)
	t.wg.Add(1)
	go t.run(key, ref, f)

	return TranslationState{Page: page, Status: TranslationLoading}, nil
}

func (t *Translator) checkPageLocked(page int) error {
	if page < 0 || page >= t.chapter.PageCount() {
		return fmt.Errorf("%w: %d", shared.ErrPageOutOfRange, page)
	}
	if page != t.current {
		return fmt.Errorf("%w: %d (current %d)", shared.ErrPageNotCurrent, page, t.current)
	}
	return nil
}

func (t *Translator) run(key pageKey, ref string, f *flight) {
	defer t.wg.Done()

	page := key.page
	results, err := t.translate(page, ref, key.lang)

	if t.refund.refunds(err) {
		if _, rerr := t.identity.RefundToken(); rerr != nil {
			t.logger.Warn("token refund failed", "page", page, "error", rerr)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.inflight, key)
	if t.closed {
		return
	}

	if err != nil {
		t.logger.Error("translation failed", "page", page, "error", err)
		if t.visits.Valid(f.visit) {
			t.state = TranslationState{Page: page, Status: TranslationFailed, Message: FailedMessage, Err: err}
			t.publishLocked()
		}
		return
	}

	t.cache[key] = results
	t.logger.Info("translation ready", "page", page, "lang", key.lang, "results", len(results))

	if t.visits.Valid(f.visit) {
		t.state = TranslationState{Page: page, Status: TranslationReady, Results: results}
		t.publishLocked()
	} else {
		t.logger.Debug("stale translation cached", "page", page, "current", t.current)
	}
}

func (t *Translator) translate(page int, ref string, lang models.Language) ([]models.TranslationResult, error) {
	img, err := t.pages.Load(t.ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load page %d: %w", shared.ErrGateway, page+1, err)
	}

	results, err := t.gateway.TranslatePage(t.ctx, img, lang)
	if err != nil {
		if errors.Is(err, shared.ErrGateway) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", shared.ErrGateway, err)
	}
	return results, nil
}

// Cached reports whether page already has a translation into the current language.
func (t *Translator) Cached(page int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.cache[pageKey{page: page, lang: t.lang}]
	return ok
}

// Pending reports whether a gateway call for page in the current language is outstanding.
func (t *Translator) Pending(page int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.inflight[pageKey{page: page, lang: t.lang}]
	return ok
}

// Wait blocks until every outstanding gateway call has finished.
func (t *Translator) Wait() {
	t.wg.Wait()
}

// Close cancels outstanding gateway calls and waits for them. It is safe to call more than once.
func (t *Translator) Close() {
	t.mu.Lock()
	t.closed = true
	t.visits.Revoke()
	t.mu.Unlock()

	t.cancel()
	t.wg.Wait()
}

func (t *Translator) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *Translator) publishLocked() {
	t.events.send(Event{Kind: EventTranslation, Page: t.state.Page, Translation: t.snapshotLocked()})
}
