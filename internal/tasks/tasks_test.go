package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/aleerpe/internal/models"
	"github.com/desertthunder/aleerpe/internal/shared"
	th "github.com/desertthunder/aleerpe/internal/testing"
)

type memoryCache struct {
	mu        sync.Mutex
	scripts   map[string][]models.AudioSegment
	lookupErr error
	storeErr  error
	stores    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{scripts: make(map[string][]models.AudioSegment)}
}

func (c *memoryCache) Lookup(chapterID string, lang models.Language) ([]models.AudioSegment, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lookupErr != nil {
		return nil, false, c.lookupErr
	}
	segs, ok := c.scripts[chapterID+"/"+string(lang)]
	return segs, ok, nil
}

func (c *memoryCache) Store(chapterID string, lang models.Language, segments []models.AudioSegment) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stores++
	if c.storeErr != nil {
		return c.storeErr
	}
	c.scripts[chapterID+"/"+string(lang)] = segments
	return nil
}

func testChapter(pages ...string) *models.Chapter {
	c := models.NewChapter(1, "manga-1", "Chapter 1", pages)
	c.SetID("ch-1")
	return c
}

func quietOpts() ScriptEngineOpts {
	return ScriptEngineOpts{Workers: 2, Logger: shared.NewLogger(&strings.Builder{})}
}

func drain(ch chan ProgressUpdate) []ProgressUpdate {
	close(ch)
	var updates []ProgressUpdate
	for u := range ch {
		updates = append(updates, u)
	}
	return updates
}

func TestScriptEngineGenerate(t *testing.T) {
	t.Run("narrates every page in order", func(t *testing.T) {
		gw := th.NewFakeGateway()
		gw.Scripts["p1"] = "First page."
		gw.Scripts["p2"] = "Second page."
		gw.Scripts["p3"] = "Third page."

		engine := NewScriptEngine(gw, &th.FakePages{}, nil, quietOpts())
		segments, err := engine.Generate(context.Background(), testChapter("p1", "p2", "p3"), models.English, nil)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}

		if len(segments) != 3 {
			t.Fatalf("expected 3 segments, got %d", len(segments))
		}
		for i, seg := range segments {
			if seg.PageIndex != i {
				t.Errorf("segment %d: expected page %d, got %d", i, i, seg.PageIndex)
			}
		}
		if segments[1].Text != "Second page." {
			t.Errorf("unexpected text: %q", segments[1].Text)
		}
	})

	t.Run("skips blank scripts", func(t *testing.T) {
		gw := th.NewFakeGateway()
		gw.Scripts["p1"] = "Text."
		gw.Scripts["p2"] = "   "

		engine := NewScriptEngine(gw, &th.FakePages{}, nil, quietOpts())
		segments, err := engine.Generate(context.Background(), testChapter("p1", "p2", "p3"), models.Spanish, nil)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if len(segments) != 1 || segments[0].PageIndex != 0 {
			t.Errorf("expected only page 0, got %+v", segments)
		}
	})

	t.Run("failed pages become unavailable segments", func(t *testing.T) {
		gw := th.NewFakeGateway()
		gw.Scripts["p1"] = "Text."
		gw.Fail["p2"] = errors.New("boom")

		engine := NewScriptEngine(gw, &th.FakePages{Fail: map[string]bool{"p3": true}}, nil, quietOpts())
		segments, err := engine.Generate(context.Background(), testChapter("p1", "p2", "p3"), models.Spanish, nil)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if len(segments) != 3 {
			t.Fatalf("expected 3 segments, got %d", len(segments))
		}
		if segments[1].Text != "[Page 2 - Translation unavailable]" {
			t.Errorf("unexpected placeholder: %q", segments[1].Text)
		}
		if segments[2].Text != "[Page 3 - Translation unavailable]" {
			t.Errorf("unexpected placeholder: %q", segments[2].Text)
		}
	})

	t.Run("progress is monotonic and reaches 100", func(t *testing.T) {
		gw := th.NewFakeGateway()
		pages := make([]string, 5)
		for i := range pages {
			pages[i] = fmt.Sprintf("p%d", i)
			gw.Scripts[pages[i]] = "text"
		}

		progress := make(chan ProgressUpdate, 64)
		engine := NewScriptEngine(gw, &th.FakePages{}, nil, quietOpts())
		if _, err := engine.Generate(context.Background(), testChapter(pages...), models.Spanish, progress); err != nil {
			t.Fatalf("Generate failed: %v", err)
		}

		updates := drain(progress)
		last := 0
		for _, u := range updates {
			if u.Percent < last {
				t.Fatalf("progress went backwards: %d after %d", u.Percent, last)
			}
			last = u.Percent
		}
		if last != 100 {
			t.Errorf("expected final progress 100, got %d", last)
		}
		if updates[len(updates)-1].Phase != ScriptReady {
			t.Errorf("expected final phase %s, got %s", ScriptReady, updates[len(updates)-1].Phase)
		}
	})

	t.Run("first page reports half a page", func(t *testing.T) {
		gw := th.NewFakeGateway()
		gw.Scripts["p1"] = "text"
		gw.Scripts["p2"] = "text"

		opts := quietOpts()
		opts.Workers = 1
		progress := make(chan ProgressUpdate, 64)
		engine := NewScriptEngine(gw, &th.FakePages{}, nil, opts)
		if _, err := engine.Generate(context.Background(), testChapter("p1", "p2"), models.Spanish, progress); err != nil {
			t.Fatalf("Generate failed: %v", err)
		}

		updates := drain(progress)
		want := []int{25, 50, 75, 100}
		var got []int
		for _, u := range updates {
			if u.Phase == NarratePages {
				got = append(got, u.Percent)
			}
		}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("uses saved script", func(t *testing.T) {
		gw := th.NewFakeGateway()
		cache := newMemoryCache()
		cache.scripts["ch-1/en"] = []models.AudioSegment{{PageIndex: 0, Text: "saved"}}

		engine := NewScriptEngine(gw, &th.FakePages{}, cache, quietOpts())
		segments, err := engine.Generate(context.Background(), testChapter("p1"), models.English, nil)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if len(segments) != 1 || segments[0].Text != "saved" {
			t.Errorf("expected saved script, got %+v", segments)
		}
		if len(gw.Calls()) != 0 {
			t.Errorf("expected no gateway calls, got %v", gw.Calls())
		}
	})

	t.Run("saves generated script", func(t *testing.T) {
		gw := th.NewFakeGateway()
		gw.Scripts["p1"] = "fresh"
		cache := newMemoryCache()

		engine := NewScriptEngine(gw, &th.FakePages{}, cache, quietOpts())
		if _, err := engine.Generate(context.Background(), testChapter("p1"), models.French, nil); err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if got := cache.scripts["ch-1/fr"]; len(got) != 1 || got[0].Text != "fresh" {
			t.Errorf("expected script to be saved, got %+v", got)
		}
	})

	t.Run("cache failures do not fail generation", func(t *testing.T) {
		gw := th.NewFakeGateway()
		gw.Scripts["p1"] = "fresh"
		cache := newMemoryCache()
		cache.lookupErr = errors.New("db locked")
		cache.storeErr = errors.New("db locked")

		engine := NewScriptEngine(gw, &th.FakePages{}, cache, quietOpts())
		segments, err := engine.Generate(context.Background(), testChapter("p1"), models.French, nil)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if len(segments) != 1 {
			t.Errorf("expected 1 segment, got %d", len(segments))
		}
	})

	t.Run("empty playlists are not saved", func(t *testing.T) {
		gw := th.NewFakeGateway()
		cache := newMemoryCache()

		engine := NewScriptEngine(gw, &th.FakePages{}, cache, quietOpts())
		segments, err := engine.Generate(context.Background(), testChapter("p1"), models.French, nil)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if len(segments) != 0 || cache.stores != 0 {
			t.Errorf("expected nothing saved, got %d segments and %d stores", len(segments), cache.stores)
		}
	})

	t.Run("cancellation aborts", func(t *testing.T) {
		gw := th.NewFakeGateway()
		gw.Hold = make(chan struct{})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		engine := NewScriptEngine(gw, &th.FakePages{}, nil, quietOpts())
		_, err := engine.Generate(ctx, testChapter("p1", "p2"), models.Spanish, nil)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("concurrent requests share one generation", func(t *testing.T) {
		gw := th.NewFakeGateway()
		gw.Scripts["p1"] = "shared"
		gw.Hold = make(chan struct{})

		engine := NewScriptEngine(gw, &th.FakePages{}, nil, quietOpts())
		chapter := testChapter("p1")

		var wg sync.WaitGroup
		results := make([][]models.AudioSegment, 2)
		for i := range results {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i], _ = engine.Generate(context.Background(), chapter, models.Spanish, nil)
			}()
		}

		for len(gw.Calls()) == 0 {
			time.Sleep(time.Millisecond)
		}
		time.Sleep(50 * time.Millisecond)
		close(gw.Hold)
		wg.Wait()

		if calls := gw.Calls(); len(calls) != 1 {
			t.Errorf("expected 1 gateway call, got %d", len(calls))
		}
		for i, r := range results {
			if len(r) != 1 {
				t.Errorf("caller %d: expected 1 segment, got %d", i, len(r))
			}
		}
	})

	t.Run("validates inputs", func(t *testing.T) {
		engine := NewScriptEngine(nil, nil, nil, quietOpts())
		if _, err := engine.Generate(context.Background(), nil, models.Spanish, nil); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if _, err := engine.Generate(context.Background(), testChapter("p1"), models.Spanish, nil); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}

		withGateway := NewScriptEngine(th.NewFakeGateway(), &th.FakePages{}, nil, quietOpts())
		if _, err := withGateway.Generate(context.Background(), testChapter(), models.Spanish, nil); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestScriptEngineExport(t *testing.T) {
	t.Run("writes one file per language and a manifest", func(t *testing.T) {
		gw := th.NewFakeGateway()
		gw.Scripts["p1"] = "hello"
		dir := t.TempDir()

		progress := make(chan ProgressUpdate, 32)
		engine := NewScriptEngine(gw, &th.FakePages{}, nil, quietOpts())
		result, err := engine.Export(context.Background(), progress, testChapter("p1"),
			[]models.Language{models.Spanish, models.English}, ExportOpts{Format: "markdown", OutputDir: dir})
		if err != nil {
			t.Fatalf("Export failed: %v", err)
		}

		if result.SuccessfulExports != 2 || result.FailedExports != 0 {
			t.Errorf("unexpected counts: %+v", result)
		}
		th.AssertFileExists(t, filepath.Join(dir, "ch-1_es.md"))
		th.AssertFileExists(t, filepath.Join(dir, "ch-1_en.md"))

		manifest := th.MustReadFile(t, result.ManifestPath)
		if !strings.Contains(manifest, `"successful_exports": 2`) {
			t.Errorf("manifest missing counts: %s", manifest)
		}

		updates := drain(progress)
		if updates[len(updates)-1].Percent != 100 {
			t.Errorf("expected export to finish at 100%%, got %d", updates[len(updates)-1].Percent)
		}
	})

	t.Run("records failures without stopping", func(t *testing.T) {
		dir := t.TempDir()
		blocker := filepath.Join(dir, "ch-1_es.json")
		if err := os.Mkdir(blocker, 0755); err != nil {
			t.Fatalf("failed to create blocker: %v", err)
		}

		gw := th.NewFakeGateway()
		gw.Scripts["p1"] = "hello"
		engine := NewScriptEngine(gw, &th.FakePages{}, nil, quietOpts())
		result, err := engine.Export(context.Background(), nil, testChapter("p1"),
			[]models.Language{models.Spanish, models.English}, ExportOpts{OutputDir: dir})
		if err != nil {
			t.Fatalf("Export failed: %v", err)
		}
		if result.SuccessfulExports != 1 || result.FailedExports != 1 {
			t.Errorf("expected one success and one failure, got %+v", result)
		}
		if result.Results[0].Error == "" {
			t.Error("expected failure to be recorded")
		}
	})

	t.Run("rejects bad options", func(t *testing.T) {
		engine := NewScriptEngine(th.NewFakeGateway(), &th.FakePages{}, nil, quietOpts())

		_, err := engine.Export(context.Background(), nil, testChapter("p1"), nil, ExportOpts{})
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}

		_, err = engine.Export(context.Background(), nil, testChapter("p1"), []models.Language{models.Spanish}, ExportOpts{Format: "pdf"})
		if !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})
}

func TestPhaseString(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{LookupScript, "lookup_script"},
		{NarratePages, "narrate_pages"},
		{SaveScript, "save_script"},
		{ScriptReady, "script_ready"},
		{ExportScripts, "export_scripts"},
		{Phase(99), ""},
	}
	for _, tt := range tests {
		if got := tt.phase.String(); got != tt.want {
			t.Errorf("Phase(%d).String() = %q, want %q", tt.phase, got, tt.want)
		}
	}
}
