package compose

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	// decoders for uploaded camera frames
	_ "image/gif"
	_ "image/png"
)

var (
	ErrNotImage   = errors.New("file is not an image")
	ErrEmptyPhoto = errors.New("empty photo")
)

// FrameSource is an open camera. It must be closed once a frame is taken or
// the capture is abandoned.
type FrameSource interface {
	Frame(ctx context.Context) (image.Image, error)
	Close() error
}

type PhotoDialog struct {
	Dialog
	giftID   string
	uploader Uploader
	now      func() time.Time
}

// NewPhotoDialog inlines photos as data URLs. With a non-nil uploader the
// image is stored through it and the resulting URL is used instead.
func NewPhotoDialog(giftID string, uploader Uploader, onReady ItemReady) *PhotoDialog {
	return &PhotoDialog{
		Dialog:   newDialog(onReady),
		giftID:   giftID,
		uploader: uploader,
		now:      time.Now,
	}
}

// FromFile completes the dialog with a picked image file.
func (d *PhotoDialog) FromFile(ctx context.Context, filename string, data []byte) error {
	if err := d.check(); err != nil {
		return err
	}
	if len(data) == 0 {
		return ErrEmptyPhoto
	}
	ct := http.DetectContentType(data)
	if !strings.HasPrefix(ct, "image/") {
		return fmt.Errorf("%w: %s", ErrNotImage, ct)
	}
	ext := path.Ext(filename)
	if ext == "" {
		ext = extensionFor(ct)
	}
	return d.finish(ctx, ct, ext, data)
}

// FromCamera takes a single frame from src and completes the dialog with it
// as a JPEG. src is closed on every path.
func (d *PhotoDialog) FromCamera(ctx context.Context, src FrameSource) (err error) {
	defer func() {
		if cerr := src.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close camera: %w", cerr)
		}
	}()
	if err := d.check(); err != nil {
		return err
	}
	frame, err := src.Frame(ctx)
	if err != nil {
		return fmt.Errorf("capture frame: %w", err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: 90}); err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	return d.finish(ctx, "image/jpeg", ".jpg", buf.Bytes())
}

func (d *PhotoDialog) finish(ctx context.Context, mimeType, ext string, data []byte) error {
	if d.uploader == nil {
		return d.Complete(DataURL(mimeType, data))
	}
	name := fmt.Sprintf("photo-%d%s", d.now().UnixMilli(), ext)
	url, err := d.uploader.Put(ctx, d.giftID, name, data)
	if err != nil {
		return fmt.Errorf("upload photo: %w", err)
	}
	return d.Complete(url)
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

// StillFrame is a FrameSource over an already captured still image, such as
// a frame posted by a browser camera preview.
type StillFrame struct {
	r      io.ReadCloser
	closed bool
}

func NewStillFrame(r io.ReadCloser) *StillFrame {
	return &StillFrame{r: r}
}

func (s *StillFrame) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, _, err := image.Decode(s.r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	return img, nil
}

func (s *StillFrame) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.r.Close()
}
