package compose

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

var ErrEmptyRecording = errors.New("empty recording")

// Recorder is an open microphone. Read returns the next recorded chunk and
// io.EOF once recording stops.
type Recorder interface {
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

type VoiceDialog struct {
	Dialog
	giftID   string
	uploader Uploader
	now      func() time.Time
}

func NewVoiceDialog(giftID string, uploader Uploader, onReady ItemReady) *VoiceDialog {
	return &VoiceDialog{
		Dialog:   newDialog(onReady),
		giftID:   giftID,
		uploader: uploader,
		now:      time.Now,
	}
}

// Filename is the stored name of a recording made at t.
func VoiceFilename(t time.Time) string {
	return fmt.Sprintf("voice-%d.wav", t.UnixMilli())
}

// Record drains rec, uploads the concatenated chunks and completes the
// dialog with the uploaded URL. rec is closed on every path; an upload
// failure leaves the dialog open.
func (d *VoiceDialog) Record(ctx context.Context, rec Recorder) (err error) {
	defer func() {
		if cerr := rec.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close recorder: %w", cerr)
		}
	}()
	if err := d.check(); err != nil {
		return err
	}

	var buf bytes.Buffer
	for {
		chunk, err := rec.Read(ctx)
		buf.Write(chunk)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("record: %w", err)
		}
	}
	if buf.Len() == 0 {
		return ErrEmptyRecording
	}

	url, err := d.uploader.Put(ctx, d.giftID, VoiceFilename(d.now()), buf.Bytes())
	if err != nil {
		return fmt.Errorf("upload recording: %w", err)
	}
	return d.Complete(url)
}

// StreamRecorder turns a byte stream (e.g. a request body) into recorder
// chunks.
type StreamRecorder struct {
	r     io.ReadCloser
	chunk int
}

func NewStreamRecorder(r io.ReadCloser, chunk int) *StreamRecorder {
	if chunk <= 0 {
		chunk = 32 << 10
	}
	return &StreamRecorder{r: r, chunk: chunk}
}

func (s *StreamRecorder) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf := make([]byte, s.chunk)
	n, err := io.ReadFull(s.r, buf)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	return buf[:n], err
}

func (s *StreamRecorder) Close() error {
	return s.r.Close()
}
