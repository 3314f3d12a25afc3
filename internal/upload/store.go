// Package upload stores binary content (voice notes, photos) for a gift and
// hands back a public URL for it.
package upload

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path"
	"strings"

	"giftletter/pkg/kv"
	"giftletter/pkg/logger"
	"giftletter/pkg/metrics"
)

const blobPrefix = "blob:"

var (
	ErrInvalidFilename = errors.New("invalid filename")
	ErrTooLarge        = errors.New("upload too large")
	ErrEmpty           = errors.New("empty upload")
	ErrRateLimited     = errors.New("too many uploads")
	ErrNotFound        = errors.New("blob not found")
)

type Options struct {
	BaseURL  string
	MaxBytes int64
	RPS      float64
	Burst    int
}

// Store keeps blobs in the same key-value backend as the canvas snapshots,
// under blob:{giftID}/{filename}.
type Store struct {
	kv       kv.Store
	baseURL  string
	maxBytes int64
	limits   *limiterPool
}

func NewStore(store kv.Store, opts Options) *Store {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 10 << 20
	}
	return &Store{
		kv:       store,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		maxBytes: opts.MaxBytes,
		limits:   &limiterPool{rps: opts.RPS, burst: opts.Burst},
	}
}

func (s *Store) MaxBytes() int64 { return s.maxBytes }

func BlobKey(giftID, filename string) string {
	return blobPrefix + giftID + "/" + filename
}

// URL is the public address a stored blob is served from.
func (s *Store) URL(giftID, filename string) string {
	return fmt.Sprintf("%s/blobs/%s/%s", s.baseURL, giftID, filename)
}

// CleanFilename rejects names that could escape the gift's namespace.
func CleanFilename(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	return name, nil
}

// Put stores data for giftID and returns its public URL. An existing blob
// with the same name is replaced.
func (s *Store) Put(ctx context.Context, giftID, filename string, data []byte) (string, error) {
	url, err := s.put(ctx, giftID, filename, data)
	rejected := errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTooLarge)
	metrics.ObserveUpload(err, rejected)
	return url, err
}

func (s *Store) put(ctx context.Context, giftID, filename string, data []byte) (string, error) {
	if giftID == "" {
		return "", errors.New("missing gift id")
	}
	name, err := CleanFilename(filename)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if int64(len(data)) > s.maxBytes {
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(data), s.maxBytes)
	}
	if !s.limits.Allow(giftID) {
		return "", ErrRateLimited
	}
	if err := s.kv.Set(ctx, BlobKey(giftID, name), data); err != nil {
		logger.Sugar.Errorf("Failed to store upload %s/%s: %v", giftID, name, err)
		return "", fmt.Errorf("store upload: %w", err)
	}
	logger.Sugar.Infof("Stored upload %s/%s (%d bytes)", giftID, name, len(data))
	return s.URL(giftID, name), nil
}

// Get returns a blob and its content type.
func (s *Store) Get(ctx context.Context, giftID, filename string) ([]byte, string, error) {
	name, err := CleanFilename(filename)
	if err != nil {
		return nil, "", err
	}
	data, err := s.kv.Get(ctx, BlobKey(giftID, name))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", err
	}
	return data, ContentType(name, data), nil
}

// DeleteAll removes every blob of a gift.
func (s *Store) DeleteAll(ctx context.Context, giftID string) error {
	if giftID == "" {
		return errors.New("missing gift id")
	}
	s.limits.forget(giftID)
	return s.kv.DeletePrefix(ctx, blobPrefix+giftID+"/")
}

// ContentType prefers the file extension and falls back to sniffing.
func ContentType(filename string, data []byte) string {
	if ct := mime.TypeByExtension(path.Ext(filename)); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}
