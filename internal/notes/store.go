package notes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var ErrCorruptStore = errors.New("corrupt note store")

// CorruptStoreError means the backing file exists but is not a valid
// collection. The file is left untouched.
type CorruptStoreError struct {
	Path string
	Err  error
}

func (e *CorruptStoreError) Error() string {
	return fmt.Sprintf("corrupt note store %s: %v", e.Path, e.Err)
}

func (e *CorruptStoreError) Unwrap() error { return e.Err }

func (e *CorruptStoreError) Is(target error) bool { return target == ErrCorruptStore }

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator replaces the UUIDv7 generator.
func WithIDGenerator(newID func() (string, error)) Option {
	return func(s *Store) { s.newID = newID }
}

func WithFileMode(perm os.FileMode) Option {
	return func(s *Store) { s.perm = perm }
}

// Store is a note collection persisted as one JSON document. Every
// mutation reads the whole collection and rewrites the whole file while
// holding the write lock, so mutations never interleave.
type Store struct {
	path   string
	perm   os.FileMode
	now    func() time.Time
	newID  func() (string, error)
	logger *slog.Logger

	mu sync.RWMutex

	// snapshot cache, only used while Watch runs
	watching atomic.Bool
	cacheMu  sync.Mutex
	cacheGen uint64
	cache    []Note
	cacheOK  bool
}

// Open returns a store for path, creating an empty collection if the file
// does not exist yet.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:   path,
		perm:   0o644,
		now:    time.Now,
		newID:  newUUID,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.EnsureInitialized(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func newUUID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (s *Store) Path() string { return s.path }

// EnsureInitialized creates the backing file with an empty collection if
// it is missing. An existing file is never touched.
func (s *Store) EnsureInitialized(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureLocked()
}

func (s *Store) ensureLocked() error {
	_, err := os.Stat(s.path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat note store: %w", err)
	}
	if err := s.persistLocked(nil); err != nil {
		return fmt.Errorf("initialize note store: %w", err)
	}
	s.logger.Info("initialized note store", "path", s.path)
	return nil
}

// All returns every note in the collection.
func (s *Store) All(ctx context.Context) ([]Note, error) {
	return s.load(ctx)
}

func (s *Store) ByUser(ctx context.Context, userID int64) ([]Note, error) {
	return s.filter(ctx, func(n Note) bool { return n.UserID == userID })
}

func (s *Store) ByCourse(ctx context.Context, courseID int64) ([]Note, error) {
	return s.filter(ctx, func(n Note) bool { return n.CourseID == courseID })
}

// ByID returns nil, nil when no note has id.
func (s *Store) ByID(ctx context.Context, id string) (*Note, error) {
	all, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID == id {
			n := all[i]
			return &n, nil
		}
	}
	return nil, nil
}

func (s *Store) Create(ctx context.Context, in NewNote) (Note, error) {
	if err := ctx.Err(); err != nil {
		return Note{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.loadForWriteLocked()
	if err != nil {
		return Note{}, err
	}

	id, err := s.newID()
	if err != nil {
		return Note{}, fmt.Errorf("generate note id: %w", err)
	}
	for _, n := range all {
		if n.ID == id {
			return Note{}, fmt.Errorf("generated note id %q already exists", id)
		}
	}

	now := s.timestamp()
	n := Note{
		ID:        id,
		Title:     cloneString(in.Title),
		Content:   in.Content,
		UserID:    in.UserID,
		CourseID:  in.CourseID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	all = append(all, n)
	if err := s.persistLocked(all); err != nil {
		return Note{}, err
	}
	s.logger.Debug("note created", "id", n.ID, "user_id", n.UserID, "course_id", n.CourseID)
	return cloneNote(n), nil
}

// Update merges the non-nil fields of p into the note and refreshes
// UpdatedAt. It returns nil, nil when no note has id.
func (s *Store) Update(ctx context.Context, id string, p Patch) (*Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.loadForWriteLocked()
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range all {
		if all[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, nil
	}

	n := all[idx]
	if p.Title != nil {
		n.Title = cloneString(p.Title)
	}
	if p.Content != nil {
		n.Content = *p.Content
	}
	n.UpdatedAt = s.timestamp()
	all[idx] = n

	if err := s.persistLocked(all); err != nil {
		return nil, err
	}
	s.logger.Debug("note updated", "id", id)
	out := cloneNote(n)
	return &out, nil
}

// Delete reports whether a note with id existed and was removed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.loadForWriteLocked()
	if err != nil {
		return false, err
	}

	kept := make([]Note, 0, len(all))
	for _, n := range all {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	if len(kept) == len(all) {
		return false, nil
	}
	if err := s.persistLocked(kept); err != nil {
		return false, err
	}
	s.logger.Debug("note deleted", "id", id)
	return true, nil
}

func (s *Store) StatsByUser(ctx context.Context) ([]UserCount, error) {
	all, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[int64]int)
	for _, n := range all {
		counts[n.UserID]++
	}
	out := make([]UserCount, 0, len(counts))
	for id, c := range counts {
		out = append(out, UserCount{UserID: id, NoteCount: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *Store) StatsByCourse(ctx context.Context) ([]CourseCount, error) {
	all, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[int64]int)
	for _, n := range all {
		counts[n.CourseID]++
	}
	out := make([]CourseCount, 0, len(counts))
	for id, c := range counts {
		out = append(out, CourseCount{CourseID: id, NoteCount: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CourseID < out[j].CourseID })
	return out, nil
}

func (s *Store) filter(ctx context.Context, keep func(Note) bool) ([]Note, error) {
	all, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Note, 0)
	for _, n := range all {
		if keep(n) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *Store) load(ctx context.Context) ([]Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	all, err := s.readLocked()
	s.mu.RUnlock()
	if !errors.Is(err, fs.ErrNotExist) {
		return all, err
	}

	// removed from under us; recreate and read once more
	if err := s.EnsureInitialized(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readLocked()
}

func (s *Store) loadForWriteLocked() ([]Note, error) {
	if err := s.ensureLocked(); err != nil {
		return nil, err
	}
	return s.readLocked()
}

// readLocked must be called with s.mu held in either mode.
func (s *Store) readLocked() ([]Note, error) {
	gen, hit, all := s.cachedSnapshot()
	if hit {
		return all, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("read note store: %w", err)
	}
	all, err = decode(data)
	if err != nil {
		return nil, &CorruptStoreError{Path: s.path, Err: err}
	}
	s.fill(gen, all)
	return all, nil
}

// persistLocked must be called with s.mu held for writing.
func (s *Store) persistLocked(all []Note) error {
	data, err := encode(all)
	if err != nil {
		return fmt.Errorf("encode note store: %w", err)
	}
	if err := writeFileAtomic(s.path, data, s.perm); err != nil {
		return fmt.Errorf("write note store: %w", err)
	}
	s.cacheMu.Lock()
	if s.watching.Load() {
		s.cache = cloneNotes(all)
		s.cacheOK = true
	}
	s.cacheMu.Unlock()
	return nil
}

func (s *Store) cachedSnapshot() (gen uint64, hit bool, all []Note) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.watching.Load() && s.cacheOK {
		return s.cacheGen, true, cloneNotes(s.cache)
	}
	return s.cacheGen, false, nil
}

// fill stores a freshly parsed snapshot unless the file was reported
// changed after the read started.
func (s *Store) fill(gen uint64, all []Note) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.watching.Load() && s.cacheGen == gen {
		s.cache = cloneNotes(all)
		s.cacheOK = true
	}
}

func (s *Store) invalidate() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cacheGen++
	s.cache = nil
	s.cacheOK = false
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func decode(data []byte) ([]Note, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var doc storedDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after document")
	}
	if doc.Notes == nil {
		return nil, errors.New(`missing "notes" array`)
	}

	out := make([]Note, 0, len(*doc.Notes))
	seen := make(map[string]struct{}, len(*doc.Notes))
	for i, sn := range *doc.Notes {
		n, err := sn.note()
		if err != nil {
			return nil, fmt.Errorf("note at index %d: %w", i, err)
		}
		if _, dup := seen[n.ID]; dup {
			return nil, fmt.Errorf("duplicate note id %q", n.ID)
		}
		seen[n.ID] = struct{}{}
		out = append(out, n)
	}
	return out, nil
}

func (sn storedNote) note() (Note, error) {
	switch {
	case sn.ID == nil || *sn.ID == "":
		return Note{}, errors.New("missing id")
	case sn.Content == nil:
		return Note{}, fmt.Errorf("note %q: missing content", *sn.ID)
	case sn.UserID == nil || *sn.UserID <= 0:
		return Note{}, fmt.Errorf("note %q: missing or invalid userId", *sn.ID)
	case sn.CourseID == nil || *sn.CourseID <= 0:
		return Note{}, fmt.Errorf("note %q: missing or invalid courseId", *sn.ID)
	case sn.CreatedAt == nil || sn.CreatedAt.IsZero():
		return Note{}, fmt.Errorf("note %q: missing createdAt", *sn.ID)
	case sn.UpdatedAt == nil || sn.UpdatedAt.IsZero():
		return Note{}, fmt.Errorf("note %q: missing updatedAt", *sn.ID)
	}
	return Note{
		ID:        *sn.ID,
		Title:     sn.Title,
		Content:   *sn.Content,
		UserID:    *sn.UserID,
		CourseID:  *sn.CourseID,
		CreatedAt: *sn.CreatedAt,
		UpdatedAt: *sn.UpdatedAt,
	}, nil
}

func encode(all []Note) ([]byte, error) {
	if all == nil {
		all = []Note{}
	}
	return json.Marshal(document{Notes: &all})
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneNote(n Note) Note {
	n.Title = cloneString(n.Title)
	return n
}

func cloneNotes(all []Note) []Note {
	out := make([]Note, len(all))
	for i, n := range all {
		out[i] = cloneNote(n)
	}
	return out
}
