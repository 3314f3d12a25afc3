// Package compose holds the add-item dialogs. Each dialog owns one capability
// (file or camera, microphone, drawing surface) and produces a single content
// reference for the canvas: a data URL or an uploaded URL.
package compose

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
)

var (
	ErrAlreadyCompleted = errors.New("dialog already completed")
	ErrCancelled        = errors.New("dialog cancelled")
)

// ItemReady receives the content reference once a dialog succeeds.
type ItemReady func(ref string) error

// Uploader stores binary content for a gift and returns its public URL.
type Uploader interface {
	Put(ctx context.Context, giftID, filename string, data []byte) (string, error)
}

// Dialog guards completion: the ItemReady callback runs at most once, and
// never after Cancel.
type Dialog struct {
	mu        sync.Mutex
	onReady   ItemReady
	completed bool
	cancelled bool
}

func newDialog(onReady ItemReady) Dialog {
	return Dialog{onReady: onReady}
}

// Complete hands ref to the callback. If the callback fails the dialog stays
// open so the user can retry.
func (d *Dialog) Complete(ref string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancelled {
		return ErrCancelled
	}
	if d.completed {
		return ErrAlreadyCompleted
	}
	if d.onReady != nil {
		if err := d.onReady(ref); err != nil {
			return err
		}
	}
	d.completed = true
	return nil
}

// Cancel closes the dialog without producing anything.
func (d *Dialog) Cancel() {
	d.mu.Lock()
	d.cancelled = !d.completed
	d.mu.Unlock()
}

func (d *Dialog) Done() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.completed || d.cancelled
}

func (d *Dialog) check() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case d.cancelled:
		return ErrCancelled
	case d.completed:
		return ErrAlreadyCompleted
	}
	return nil
}

// DataURL inlines data as a base64 data URL.
func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
