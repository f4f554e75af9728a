package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/Alias1177/SignalBot/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// KeepBackups is how many previous versions of each file are kept
const KeepBackups = 5

const (
	subscriptionsFile = "subscriptions.json"
	trackingFile      = "tp_tracking.json"
	backupDir         = "backups"
)

type subscriptionsDoc struct {
	SavedAt       time.Time                       `json:"saved_at"`
	Subscriptions map[string]*models.Subscription `json:"subscriptions"`
}

type trackingDoc struct {
	SavedAt   time.Time                     `json:"saved_at"`
	Trackings map[string]*models.TPTracking `json:"trackings"`
}

// FileStore keeps subscriptions and trackings in JSON files, rotating backups on every write
type FileStore struct {
	dir       string
	mu        sync.Mutex
	subs      map[int64]*models.Subscription
	trackings map[string]*models.TPTracking
	now       func() time.Time
	logger    zerolog.Logger
}

// NewFileStore loads the store from dir, creating it when missing
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, backupDir), 0o755); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}

	s := &FileStore{
		dir:       dir,
		subs:      make(map[int64]*models.Subscription),
		trackings: make(map[string]*models.TPTracking),
		now:       time.Now,
		logger:    log.With().Str("component", "file_store").Logger(),
	}

	var subs subscriptionsDoc
	if err := readJSON(filepath.Join(dir, subscriptionsFile), &subs); err != nil {
		return nil, err
	}
	for key, sub := range subs.Subscriptions {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			s.logger.Warn().Str("key", key).Msg("Skipping subscription with bad chat id")
			continue
		}
		sub.ChatID = id
		s.subs[id] = sub
	}

	var tracks trackingDoc
	if err := readJSON(filepath.Join(dir, trackingFile), &tracks); err != nil {
		return nil, err
	}
	for id, t := range tracks.Trackings {
		t.ID = id
		s.trackings[id] = t
	}

	s.logger.Info().Int("subscriptions", len(s.subs)).Int("trackings", len(s.trackings)).Msg("Store loaded")
	return s, nil
}

func readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func (s *FileStore) GetSubscription(_ context.Context, chatID int64) (*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[chatID]
	if !ok {
		return nil, ErrChatNotFound
	}
	return cloneSubscription(sub), nil
}

func (s *FileStore) SaveSubscription(_ context.Context, sub *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subs[sub.ChatID] = cloneSubscription(sub)
	return s.writeSubscriptions()
}

func (s *FileStore) DeleteSubscription(_ context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subs[chatID]; !ok {
		return ErrChatNotFound
	}
	delete(s.subs, chatID)
	return s.writeSubscriptions()
}

func (s *FileStore) ListSubscriptions(_ context.Context) ([]*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, cloneSubscription(sub))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out, nil
}

func (s *FileStore) SaveTracking(_ context.Context, t *models.TPTracking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *t
	s.trackings[t.ID] = &cp
	return s.writeTrackings()
}

func (s *FileStore) ListTrackings(_ context.Context, activeOnly bool) ([]*models.TPTracking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.TPTracking
	for _, t := range s.trackings {
		if activeOnly && !t.Active {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (s *FileStore) writeSubscriptions() error {
	doc := subscriptionsDoc{SavedAt: s.now().UTC(), Subscriptions: make(map[string]*models.Subscription, len(s.subs))}
	for id, sub := range s.subs {
		doc.Subscriptions[strconv.FormatInt(id, 10)] = sub
	}
	return s.write(subscriptionsFile, doc)
}

func (s *FileStore) writeTrackings() error {
	doc := trackingDoc{SavedAt: s.now().UTC(), Trackings: s.trackings}
	return s.write(trackingFile, doc)
}

// write backs up the current file, then replaces it atomically
func (s *FileStore) write(name string, doc any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	if err := s.backup(name); err != nil {
		s.logger.Warn().Err(err).Str("file", name).Msg("Backup failed")
	}

	tmp, err := os.CreateTemp(s.dir, name+".tmp*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", name, err)
	}
	return nil
}

func (s *FileStore) backup(name string) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	stamp := s.now().UTC().Format("20060102T150405.000000000")
	dst := filepath.Join(s.dir, backupDir, fmt.Sprintf("%s.%s.bak", name, stamp))
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return err
	}

	backups, err := Backups(s.dir, name)
	if err != nil {
		return err
	}
	for len(backups) > KeepBackups {
		if err := os.Remove(backups[0]); err != nil {
			return err
		}
		backups = backups[1:]
	}
	return nil
}

// Backups lists the backups of a store file, oldest first
func Backups(dir, name string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, backupDir, name+".*.bak"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func cloneSubscription(sub *models.Subscription) *models.Subscription {
	cp := *sub
	if sub.LastSignalAt != nil {
		t := *sub.LastSignalAt
		cp.LastSignalAt = &t
	}
	if sub.ExpiresAt != nil {
		t := *sub.ExpiresAt
		cp.ExpiresAt = &t
	}
	return &cp
}
