package tasks

import (
	"fmt"

	"github.com/desertthunder/aleerpe/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Percent int    // Overall completion, 0..100, never decreasing within one operation
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	LookupScript Phase = iota
	NarratePages
	SaveScript
	ScriptReady
	ExportScripts
)

func (p Phase) String() string {
	switch p {
	case LookupScript:
		return "lookup_script"
	case NarratePages:
		return "narrate_pages"
	case SaveScript:
		return "save_script"
	case ScriptReady:
		return "script_ready"
	case ExportScripts:
		return "export_scripts"
	default:
		return ""
	}
}

func lookupScriptUpdate(lang models.Language) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LookupScript,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Looking for a saved %s script...", lang.Name()),
	}
}

func cachedScriptUpdate(segments int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScriptReady,
		Step:    1,
		Total:   1,
		Percent: 100,
		Message: fmt.Sprintf("Using saved script (%d segments)", segments),
	}
}

func narratingPageUpdate(page, total, percent int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   NarratePages,
		Step:    page + 1,
		Total:   total,
		Percent: percent,
		Message: fmt.Sprintf("[%d/%d] Reading page...", page+1, total),
	}
}

func narratedPageUpdate(page, total, percent int, failed bool) ProgressUpdate {
	mark := "✓"
	if failed {
		mark = "✗"
	}
	return ProgressUpdate{
		Phase:   NarratePages,
		Step:    page + 1,
		Total:   total,
		Percent: percent,
		Message: fmt.Sprintf("[%d/%d] %s page %d", page+1, total, mark, page+1),
	}
}

func saveScriptUpdate(segments int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SaveScript,
		Step:    1,
		Total:   1,
		Percent: 100,
		Message: fmt.Sprintf("Saving script (%d segments)...", segments),
	}
}

func scriptReadyUpdate(segments []models.AudioSegment) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScriptReady,
		Step:    1,
		Total:   1,
		Percent: 100,
		Message: fmt.Sprintf("Script ready: %d segments", len(segments)),
		Data:    segments,
	}
}

func exportingScriptUpdate(step, total int, lang models.Language) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportScripts,
		Step:    step,
		Total:   total,
		Percent: (step - 1) * 100 / total,
		Message: fmt.Sprintf("[%d/%d] Exporting %s script...", step, total, lang.Name()),
	}
}

func exportCompletedUpdate(step, total int, lang models.Language, segments int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportScripts,
		Step:    step,
		Total:   total,
		Percent: step * 100 / total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d segments)", step, total, lang.Name(), segments),
	}
}

func exportFailedUpdate(step, total int, lang models.Language, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportScripts,
		Step:    step,
		Total:   total,
		Percent: step * 100 / total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, lang.Name(), err),
	}
}
