package repositories

import (
	"errors"

	"github.com/desertthunder/aleerpe/internal/models"
	"github.com/desertthunder/aleerpe/internal/shared"
)

// ScriptCacheAdapter implements tasks.ScriptCache using ScriptRepository.
//
// A missing playlist is reported as a cache miss rather than an error.
type ScriptCacheAdapter struct {
	repo *ScriptRepository
}

// NewScriptCacheAdapter creates a new ScriptCacheAdapter with the given repository
func NewScriptCacheAdapter(repo *ScriptRepository) *ScriptCacheAdapter {
	return &ScriptCacheAdapter{repo: repo}
}

// Lookup returns a stored playlist. ok is false when nothing usable is stored.
func (a *ScriptCacheAdapter) Lookup(chapterID string, lang models.Language) ([]models.AudioSegment, bool, error) {
	segments, err := a.repo.Get(chapterID, lang)
	if errors.Is(err, shared.ErrScriptNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return segments, len(segments) > 0, nil
}

// Store saves a playlist. Empty playlists are not cached.
func (a *ScriptCacheAdapter) Store(chapterID string, lang models.Language, segments []models.AudioSegment) error {
	if len(segments) == 0 {
		return nil
	}
	return a.repo.Save(chapterID, lang, segments)
}
