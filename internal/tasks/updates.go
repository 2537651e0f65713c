package tasks

import (
	"fmt"

	"github.com/muzik-tools/bandsync/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	Authenticating Phase = iota
	Enumerating
	Reconciling
	Downloading
	Finalizing
)

func (p Phase) String() string {
	switch p {
	case Authenticating:
		return "authenticate"
	case Enumerating:
		return "enumerate"
	case Reconciling:
		return "reconcile"
	case Downloading:
		return "download"
	case Finalizing:
		return "finalize"
	default:
		return ""
	}
}

// ItemProgress is the Data payload for per-item download updates.
type ItemProgress struct {
	Item    models.CollectionItem
	Written int64
	Total   int64
	Done    bool
	Err     error
}

func authenticateUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   Authenticating,
		Step:    1,
		Total:   1,
		Message: "Authenticating with Bandcamp...",
	}
}

func enumerateUpdate(user string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Enumerating,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching collection for %s...", user),
	}
}

func reconcileUpdate(total, delta int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Reconciling,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("%d of %d item(s) need downloading", delta, total),
	}
}

func downloadUpdate(step, total int, progress ItemProgress) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Downloading,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Downloading %s...", progress.Item.Display()),
		Data:    progress,
	}
}

func finalizeUpdate(report *models.FetchReport) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Finalizing,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Done: %d succeeded, %d failed, %d skipped", len(report.Succeeded), len(report.Failed), report.Skipped),
		Data:    report,
	}
}
