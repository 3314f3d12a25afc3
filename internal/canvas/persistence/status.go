package persistence

import "time"

type Phase string

const (
	PhaseSaving Phase = "saving"
	PhaseSaved  Phase = "saved"
	PhaseFailed Phase = "failed"
)

// Status drives the save indicator. Unlike a plain pending flag it keeps a
// failed save visible until the next save succeeds.
type Status struct {
	Phase   Phase     `json:"status"`
	Pending bool      `json:"pending"`
	Error   string    `json:"error,omitempty"`
	SavedAt time.Time `json:"saved_at,omitempty"`
}

// Label is the text shown next to the share button.
func (s Status) Label() string {
	switch s.Phase {
	case PhaseSaving:
		return "Saving..."
	case PhaseFailed:
		return "Not saved"
	default:
		return "Saved"
	}
}
