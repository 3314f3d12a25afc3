package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"giftletter/internal/canvas/itemstore"
	"giftletter/internal/canvas/model"
	"giftletter/internal/canvas/persistence"
	"giftletter/internal/canvas/repository"
	"giftletter/pkg/logger"
	"giftletter/pkg/metrics"

	"github.com/google/uuid"
)

var (
	ErrMissingGiftID = errors.New("missing gift id")
	ErrGiftDeleted   = errors.New("gift was deleted")
)

// Notifier fans gift events out to connected canvases.
type Notifier interface {
	PublishStatus(giftID string, st persistence.Status)
	RemoveGift(giftID string)
}

// BlobStore is the part of the upload store a gift deletion needs.
type BlobStore interface {
	DeleteAll(ctx context.Context, giftID string) error
}

type Options struct {
	SaveDelay     time.Duration
	IdleTTL       time.Duration
	PublicBaseURL string
	IssueToken    func(giftID string) (string, error)
}

type session struct {
	ready chan struct{}
	err   error

	mu       sync.Mutex // held for every store mutation; guards closed and deleted
	closed   bool
	deleted  bool
	store    *itemstore.Store
	bridge   *persistence.Bridge
	lastUsed time.Time
}

// GiftService owns the live canvas sessions. A session is opened on first
// use by restoring the stored snapshot into a fresh item store whose
// observer feeds a persistence bridge.
type GiftService struct {
	Repo     *repository.SnapshotRepository
	Blobs    BlobStore
	Notifier Notifier
	opts     Options

	mu       sync.Mutex
	sessions map[string]*session
	deleting map[string]chan struct{} // closed when the deletion finishes
	now      func() time.Time
}

func NewGiftService(repo *repository.SnapshotRepository, blobs BlobStore, notifier Notifier, opts Options) *GiftService {
	if opts.SaveDelay <= 0 {
		opts.SaveDelay = persistence.DefaultDelay
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 30 * time.Minute
	}
	opts.PublicBaseURL = strings.TrimRight(opts.PublicBaseURL, "/")
	return &GiftService{
		Repo:     repo,
		Blobs:    blobs,
		Notifier: notifier,
		opts:     opts,
		sessions: make(map[string]*session),
		deleting: make(map[string]chan struct{}),
		now:      time.Now,
	}
}

// CreateGift mints a new gift id and its editor token. Nothing is stored
// until the first save.
func (s *GiftService) CreateGift(ctx context.Context) (model.Gift, error) {
	id := uuid.NewString()
	gift := model.Gift{ID: id, Link: s.opts.PublicBaseURL + "/" + id}
	if s.opts.IssueToken != nil {
		token, err := s.opts.IssueToken(id)
		if err != nil {
			return model.Gift{}, fmt.Errorf("issue editor token: %w", err)
		}
		gift.Token = token
	}
	logger.Sugar.Infof("Created gift %s", id)
	return gift, nil
}

func (s *GiftService) session(ctx context.Context, giftID string) (*session, error) {
	if giftID == "" {
		return nil, ErrMissingGiftID
	}
	s.mu.Lock()
	if done, ok := s.deleting[giftID]; ok {
		s.mu.Unlock()
		select {
		case <-done:
			return nil, ErrGiftDeleted
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if sess, ok := s.sessions[giftID]; ok {
		s.mu.Unlock()
		select {
		case <-sess.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if sess.err != nil {
			return nil, sess.err
		}
		return sess, nil
	}
	sess := &session{ready: make(chan struct{})}
	s.sessions[giftID] = sess
	s.mu.Unlock()

	err := s.open(ctx, giftID, sess)
	s.mu.Lock()
	if err != nil {
		sess.err = err
		if s.sessions[giftID] == sess {
			delete(s.sessions, giftID)
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()
	close(sess.ready)

	if err != nil {
		return nil, err
	}
	metrics.SetActiveSessions(n)
	logger.Sugar.Infof("Opened canvas session for gift %s", giftID)
	return sess, nil
}

func (s *GiftService) open(ctx context.Context, giftID string, sess *session) error {
	items, err := persistence.Restore(ctx, s.Repo, giftID)
	if err != nil {
		return err
	}
	sess.bridge = persistence.NewBridge(giftID, s.Repo, persistence.Options{
		Delay:    s.opts.SaveDelay,
		OnStatus: s.publishStatus,
	})
	sess.store = itemstore.New(sess.bridge.Observe)
	if err := sess.store.Restore(items); err != nil {
		sess.bridge.Close()
		return fmt.Errorf("restore canvas state for %s: %w", giftID, err)
	}
	sess.lastUsed = s.now()
	return nil
}

func (s *GiftService) publishStatus(giftID string, st persistence.Status) {
	if s.Notifier != nil {
		s.Notifier.PublishStatus(giftID, st)
	}
}

// edit runs fn against the live store of giftID. A session evicted between
// lookup and lock is reopened; one closed by DeleteGift is not.
func (s *GiftService) edit(ctx context.Context, giftID string, fn func(*itemstore.Store) error) error {
	for {
		sess, err := s.session(ctx, giftID)
		if err != nil {
			return err
		}
		sess.mu.Lock()
		if sess.closed {
			deleted := sess.deleted
			sess.mu.Unlock()
			if deleted {
				return ErrGiftDeleted
			}
			continue
		}
		sess.lastUsed = s.now()
		err = fn(sess.store)
		sess.mu.Unlock()
		return err
	}
}

// AddItem places a fully formed item on the canvas.
func (s *GiftService) AddItem(ctx context.Context, giftID string, item model.LetterItem) (model.LetterItem, error) {
	if err := item.Validate(); err != nil {
		return model.LetterItem{}, err
	}
	err := s.edit(ctx, giftID, func(st *itemstore.Store) error { return st.Add(item) })
	if err != nil {
		return model.LetterItem{}, err
	}
	return item, nil
}

// NewItem builds an item with a fresh id, a random spot unless the request
// names one, and a random tilt, then adds it.
func (s *GiftService) NewItem(ctx context.Context, giftID string, req model.AddItemRequest) (model.LetterItem, error) {
	item, err := model.NewItem(req.Type, req.Content, req.Color)
	if err != nil {
		return model.LetterItem{}, err
	}
	if req.Position != nil {
		item.Position = *req.Position
	}
	return s.AddItem(ctx, giftID, item)
}

func (s *GiftService) MoveItem(ctx context.Context, giftID, itemID string, pos model.Position) error {
	return s.edit(ctx, giftID, func(st *itemstore.Store) error {
		st.UpdatePosition(itemID, pos)
		return nil
	})
}

func (s *GiftService) UpdateItemField(ctx context.Context, giftID, itemID string, field itemstore.Field, value string) error {
	return s.edit(ctx, giftID, func(st *itemstore.Store) error {
		return st.UpdateField(itemID, field, value)
	})
}

func (s *GiftService) DeleteItem(ctx context.Context, giftID, itemID string) error {
	return s.edit(ctx, giftID, func(st *itemstore.Store) error {
		st.Delete(itemID)
		return nil
	})
}

// Items returns the live collection, opening a session if needed.
func (s *GiftService) Items(ctx context.Context, giftID string) ([]model.LetterItem, error) {
	var items []model.LetterItem
	err := s.edit(ctx, giftID, func(st *itemstore.Store) error {
		items = st.Values()
		return nil
	})
	return items, err
}

// Snapshot is the read-only view used by the shareable link: the live
// collection when someone is editing, the stored snapshot otherwise.
func (s *GiftService) Snapshot(ctx context.Context, giftID string) ([]model.LetterItem, error) {
	if sess := s.live(giftID); sess != nil {
		return sess.store.Values(), nil
	}
	return persistence.Restore(ctx, s.Repo, giftID)
}

// Status reports the save state of a gift. A gift without a live session
// has nothing pending.
func (s *GiftService) Status(giftID string) persistence.Status {
	if sess := s.live(giftID); sess != nil {
		return sess.bridge.Status()
	}
	return persistence.Status{Phase: persistence.PhaseSaved}
}

func (s *GiftService) live(giftID string) *session {
	s.mu.Lock()
	sess, ok := s.sessions[giftID]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-sess.ready:
		if sess.err != nil {
			return nil
		}
		return sess
	default:
		return nil
	}
}

// ReplaceSnapshot overwrites the stored collection of a gift. A live session
// adopts the new collection and writes it through its bridge so the write
// is ordered after any save already running.
func (s *GiftService) ReplaceSnapshot(ctx context.Context, giftID string, items []model.LetterItem) error {
	if giftID == "" {
		return ErrMissingGiftID
	}
	if items == nil {
		items = []model.LetterItem{}
	}
	if err := model.ValidateSnapshot(items); err != nil {
		return err
	}
	s.mu.Lock()
	_, deleting := s.deleting[giftID]
	s.mu.Unlock()
	if deleting {
		return ErrGiftDeleted
	}
	if sess := s.live(giftID); sess != nil {
		sess.mu.Lock()
		if !sess.closed {
			if err := sess.store.Restore(items); err != nil {
				sess.mu.Unlock()
				return err
			}
			sess.bridge.Observe(sess.store.Items())
			sess.lastUsed = s.now()
			sess.mu.Unlock()
			return sess.bridge.Flush(ctx)
		}
		sess.mu.Unlock()
	}
	return s.Repo.Save(ctx, giftID, items)
}

// DeleteGift drops the live session without saving, then removes the stored
// snapshot and every uploaded blob. Edits arriving while the deletion runs
// fail with ErrGiftDeleted instead of reopening the old snapshot.
func (s *GiftService) DeleteGift(ctx context.Context, giftID string) error {
	if giftID == "" {
		return ErrMissingGiftID
	}
	s.mu.Lock()
	if done, ok := s.deleting[giftID]; ok {
		s.mu.Unlock()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	done := make(chan struct{})
	s.deleting[giftID] = done
	sess, ok := s.sessions[giftID]
	delete(s.sessions, giftID)
	n := len(s.sessions)
	s.mu.Unlock()
	metrics.SetActiveSessions(n)

	defer func() {
		s.mu.Lock()
		delete(s.deleting, giftID)
		s.mu.Unlock()
		close(done)
	}()

	if ok {
		<-sess.ready
		if sess.err == nil {
			sess.mu.Lock()
			sess.closed = true
			sess.deleted = true
			sess.mu.Unlock()
			sess.bridge.Close()
			if err := sess.bridge.Wait(ctx); err != nil {
				return err
			}
		}
	}
	if s.Notifier != nil {
		s.Notifier.RemoveGift(giftID)
	}
	if err := s.Repo.Delete(ctx, giftID); err != nil {
		return err
	}
	if s.Blobs != nil {
		if err := s.Blobs.DeleteAll(ctx, giftID); err != nil {
			return fmt.Errorf("delete uploads of %s: %w", giftID, err)
		}
	}
	logger.Sugar.Infof("Deleted gift %s", giftID)
	return nil
}
