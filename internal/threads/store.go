package threads

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"mcpdeck/internal/collections"
	"mcpdeck/internal/devstate"
	"mcpdeck/internal/logging"
)

// Collection names fixed by this store.
const (
	threadsCollection  = "threads"
	messagesCollection = "thread messages"
)

// activeThreadName is the devstate key prefix for the active-thread pointer.
const activeThreadName = "active-thread"

// Store manages conversation threads and their messages for one scope, built
// on the generic collection access layer. It is the single writer of the
// active-thread pointer for its scope.
type Store struct {
	accessor *collections.Accessor
	scope    collections.Scope
	state    *devstate.Store
	mirror   *Mirror // optional

	mu     sync.Mutex
	branch *BranchContext
}

// NewStore wires a thread store for a scope. mirror may be nil to disable the
// offline copy.
func NewStore(a *collections.Accessor, scope collections.Scope, state *devstate.Store, mirror *Mirror) *Store {
	return &Store{
		accessor: a,
		scope:    scope,
		state:    state,
		mirror:   mirror,
	}
}

// messageOptions is the canonical list options for a thread's messages. Both
// the read path and the prefill use it, so they address the same cache entry.
func messageOptions(threadID string) collections.ListOptions {
	return collections.ListOptions{
		Filters:       []collections.FieldFilter{{Field: "thread_id", Value: threadID}},
		SortKey:       "created_at",
		SortDirection: collections.Ascending,
	}
}

// threadOptions lists threads, most recently updated first, excluding hidden
// ones unless asked.
func threadOptions(includeHidden bool) collections.ListOptions {
	opts := collections.ListOptions{
		SortKey:       "updated_at",
		SortDirection: collections.Descending,
	}
	if !includeHidden {
		opts.Filters = []collections.FieldFilter{{Field: "hidden", Value: false}}
	}
	return opts
}

// ListThreads returns the scope's threads, hidden ones excluded unless
// includeHidden is set.
func (s *Store) ListThreads(ctx context.Context, includeHidden bool) ([]Thread, error) {
	result, err := collections.List[Thread](ctx, s.accessor, s.scope, threadsCollection, threadOptions(includeHidden))
	if err != nil {
		return nil, err
	}
	return result.Items, nil
}

// GetThread fetches one thread, or nil if unknown.
func (s *Store) GetThread(ctx context.Context, id string) (*Thread, error) {
	return collections.Get[Thread](ctx, s.accessor, s.scope, threadsCollection, id)
}

// Messages returns a thread's messages ordered by created_at ascending with
// id as the tiebreak.
func (s *Store) Messages(ctx context.Context, threadID string) ([]Message, error) {
	result, err := collections.List[Message](ctx, s.accessor, s.scope, messagesCollection, messageOptions(threadID))
	if err != nil {
		return nil, err
	}

	msgs := result.Items
	sort.SliceStable(msgs, func(i, j int) bool {
		ti, tj := msgs[i].Metadata.CreatedAt, msgs[j].Metadata.CreatedAt
		if ti.Equal(tj) {
			return msgs[i].ID < msgs[j].ID
		}
		return ti.Before(tj)
	})
	return msgs, nil
}

// CreateThread persists a new thread, makes it active, and prefills its empty
// message list so the conversation renders instantly. Zero fields of seed are
// defaulted; a nil seed creates an untitled thread.
func (s *Store) CreateThread(ctx context.Context, seed *Thread) (*Thread, error) {
	t := Thread{}
	if seed != nil {
		t = *seed
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}
	t.Hidden = false

	created, err := collections.Create[Thread](ctx, s.accessor, s.scope, threadsCollection, t)
	if err != nil {
		return nil, fmt.Errorf("creating thread: %w", err)
	}

	if err := s.setActive(created.ID); err != nil {
		return nil, err
	}

	collections.Prefill[Message](s.accessor, s.scope, messagesCollection, messageOptions(created.ID))

	s.mirrorSave(*created, nil)

	logging.Info("thread created", "thread_id", created.ID, "scope", s.scope.Key())
	return created, nil
}

// AppendMessage persists a message to a thread.
func (s *Store) AppendMessage(ctx context.Context, threadID string, role Role, parts []Part) (*Message, error) {
	msg := Message{
		ID:    uuid.NewString(),
		Role:  role,
		Parts: parts,
		Metadata: MessageMetadata{
			ThreadID:  threadID,
			CreatedAt: time.Now().UTC(),
		},
	}

	created, err := collections.Create[Message](ctx, s.accessor, s.scope, messagesCollection, msg)
	if err != nil {
		return nil, fmt.Errorf("appending message: %w", err)
	}

	s.refreshMirror(ctx, threadID)
	return created, nil
}

// SetTitleOnce sets a thread's title if it has never been titled. Once set,
// the title is permanent: later exchanges never overwrite it.
func (s *Store) SetTitleOnce(ctx context.Context, threadID, title string) error {
	if title == "" {
		return nil
	}
	t, err := s.GetThread(ctx, threadID)
	if err != nil {
		return err
	}
	if t == nil || t.Title != "" {
		return nil
	}

	_, err = collections.Update[Thread](ctx, s.accessor, s.scope, threadsCollection, threadID, map[string]any{
		"title":      title,
		"updated_at": time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("titling thread: %w", err)
	}
	s.refreshMirror(ctx, threadID)
	return nil
}

// HideThread soft-deletes a thread. If the hidden thread was active, the
// pointer moves to another visible thread, or to a brand-new one when none
// remains; it is never left referencing a hidden thread.
func (s *Store) HideThread(ctx context.Context, id string) error {
	_, err := collections.Update[Thread](ctx, s.accessor, s.scope, threadsCollection, id, map[string]any{
		"hidden":     true,
		"updated_at": time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("hiding thread: %w", err)
	}

	s.refreshMirror(ctx, id)

	active, ok := s.activePointer()
	if !ok || active != id {
		return nil
	}

	remaining, err := s.ListThreads(ctx, false)
	if err != nil {
		return err
	}
	for _, t := range remaining {
		if t.ID != id {
			return s.setActive(t.ID)
		}
	}

	_, err = s.CreateThread(ctx, nil)
	return err
}

// BranchFromMessage forks a new thread from the messages strictly before the
// given message, excluding system messages. Copies get fresh ids and a
// rewritten thread_id while keeping their original created_at, so the new
// thread replays the prefix in its original order. The source thread is never
// mutated. An unknown message id is logged and ignored.
func (s *Store) BranchFromMessage(ctx context.Context, threadID, messageID string) (string, error) {
	msgs, err := s.Messages(ctx, threadID)
	if err != nil {
		return "", err
	}

	pos := -1
	for i, m := range msgs {
		if m.ID == messageID {
			pos = i
			break
		}
	}
	if pos < 0 {
		logging.Warn("branch point not found, skipping branch",
			"thread_id", threadID, "message_id", messageID)
		return "", nil
	}

	newID := uuid.NewString()
	now := time.Now().UTC()

	newThread := Thread{
		ID:        newID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	created, err := collections.Create[Thread](ctx, s.accessor, s.scope, threadsCollection, newThread)
	if err != nil {
		return "", fmt.Errorf("creating branched thread: %w", err)
	}

	var copied []Message
	for _, m := range msgs[:pos] {
		if m.Role == RoleSystem {
			continue
		}
		createdAt := m.Metadata.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		dup := Message{
			ID:    uuid.NewString(),
			Role:  m.Role,
			Parts: m.Parts,
			Metadata: MessageMetadata{
				ThreadID:  newID,
				CreatedAt: createdAt,
			},
		}
		persisted, err := collections.Create[Message](ctx, s.accessor, s.scope, messagesCollection, dup)
		if err != nil {
			return "", fmt.Errorf("copying message %s: %w", m.ID, err)
		}
		copied = append(copied, *persisted)
	}

	if err := s.setActive(newID); err != nil {
		return "", err
	}

	s.mirrorSave(*created, copied)
	s.ClearBranch()

	logging.Info("thread branched",
		"source", threadID, "thread_id", newID, "messages", len(copied))
	return newID, nil
}

// ActiveThread returns the scope's active thread id, initializing a fresh id
// when none exists and self-healing a pointer left on a hidden thread.
func (s *Store) ActiveThread(ctx context.Context) (string, error) {
	id, ok := s.activePointer()
	if !ok {
		id = uuid.NewString()
		if err := s.setActive(id); err != nil {
			return "", err
		}
		collections.Prefill[Message](s.accessor, s.scope, messagesCollection, messageOptions(id))
		return id, nil
	}

	t, err := s.GetThread(ctx, id)
	if err != nil {
		return "", err
	}
	if t == nil || !t.Hidden {
		// Unknown ids are fine: a brand-new thread may not be persisted yet.
		return id, nil
	}

	// Stale pointer: the active thread was hidden elsewhere. Repair it.
	logging.Warn("active thread is hidden, selecting replacement", "thread_id", id)
	remaining, err := s.ListThreads(ctx, false)
	if err != nil {
		return "", err
	}
	for _, candidate := range remaining {
		if candidate.ID != id {
			if err := s.setActive(candidate.ID); err != nil {
				return "", err
			}
			return candidate.ID, nil
		}
	}

	created, err := s.CreateThread(ctx, nil)
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

// StartEdit records that the user is editing a previously sent message; the
// context survives until the edit is sent, cancelled, or reset.
func (s *Store) StartEdit(threadID, messageID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.branch = &BranchContext{
		OriginalThreadID:    threadID,
		OriginalMessageID:   messageID,
		OriginalMessageText: text,
	}
}

// Branch returns the in-progress edit context, if any.
func (s *Store) Branch() *BranchContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.branch
}

// ClearBranch discards the in-progress edit context.
func (s *Store) ClearBranch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.branch = nil
}

// OfflineSnapshot loads a thread from the local mirror, for use when the
// gateway is unreachable.
func (s *Store) OfflineSnapshot(id string) (*ThreadSnapshot, error) {
	if s.mirror == nil {
		return nil, fmt.Errorf("mirror disabled")
	}
	return s.mirror.Load(id)
}

func (s *Store) activeKey() string {
	return devstate.ScopedKey(activeThreadName, s.scope.Key())
}

func (s *Store) activePointer() (string, bool) {
	return s.state.Get(s.activeKey())
}

func (s *Store) setActive(id string) error {
	if err := s.state.Set(s.activeKey(), id); err != nil {
		return fmt.Errorf("saving active thread pointer: %w", err)
	}
	return nil
}

// mirrorSave writes a snapshot best-effort; mirror failures never fail the
// operation that triggered them.
func (s *Store) mirrorSave(t Thread, msgs []Message) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.Save(t, msgs); err != nil {
		logging.Warn("mirror save failed", "thread_id", t.ID, "error", err)
	}
}

// refreshMirror re-snapshots a thread after a mutation.
func (s *Store) refreshMirror(ctx context.Context, threadID string) {
	if s.mirror == nil {
		return
	}
	t, err := s.GetThread(ctx, threadID)
	if err != nil || t == nil {
		return
	}
	msgs, err := s.Messages(ctx, threadID)
	if err != nil {
		return
	}
	s.mirrorSave(*t, msgs)
}
