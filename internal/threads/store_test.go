package threads

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpdeck/internal/collections"
	"mcpdeck/internal/devstate"
)

type fixture struct {
	store   *Store
	backend *collections.MockBackend
	state   *devstate.Store
	scope   collections.Scope
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	backend := collections.NewMockBackend()
	accessor := collections.NewAccessor(backend, collections.NewTTLCache(256, time.Minute))
	scope := collections.ConnectionScope("org1", "conn1")

	state, err := devstate.Open(t.TempDir())
	require.NoError(t, err)

	mirror, err := NewMirror(t.TempDir(), scope)
	require.NoError(t, err)

	return &fixture{
		store:   NewStore(accessor, scope, state, mirror),
		backend: backend,
		state:   state,
		scope:   scope,
	}
}

func (f *fixture) activeID(t *testing.T) string {
	t.Helper()
	id, ok := f.state.Get(devstate.ScopedKey(activeThreadName, f.scope.Key()))
	require.True(t, ok, "active thread pointer must be set")
	return id
}

func (f *fixture) seedMessage(id string, threadID string, role Role, text string, at time.Time) {
	f.backend.Seed(messagesCollection, Message{
		ID:    id,
		Role:  role,
		Parts: []Part{{Type: "text", Text: text}},
		Metadata: MessageMetadata{
			ThreadID:  threadID,
			CreatedAt: at,
		},
	})
}

func TestCreateThreadSetsActiveAndPrefills(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.store.CreateThread(ctx, nil)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.False(t, created.Hidden)
	assert.False(t, created.CreatedAt.IsZero())

	assert.Equal(t, created.ID, f.activeID(t))

	msgs, err := f.store.Messages(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Equal(t, 0, f.backend.CallCount("COLLECTION_THREAD_MESSAGES_LIST"),
		"a fresh thread's empty message list is served from the prefill")
}

func TestAppendAndListMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.store.CreateThread(ctx, nil)
	require.NoError(t, err)

	first, err := f.store.AppendMessage(ctx, created.ID, RoleUser, []Part{{Type: "text", Text: "hello"}})
	require.NoError(t, err)
	second, err := f.store.AppendMessage(ctx, created.ID, RoleAssistant, []Part{{Type: "text", Text: "hi there"}})
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	msgs, err := f.store.Messages(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Text())
	assert.Equal(t, "hi there", msgs[1].Text())
}

func TestListThreadsExcludesHidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	now := time.Now().UTC()
	f.backend.Seed(threadsCollection, Thread{ID: "t1", Title: "visible", CreatedAt: now, UpdatedAt: now})
	f.backend.Seed(threadsCollection, Thread{ID: "t2", Title: "gone", CreatedAt: now, UpdatedAt: now, Hidden: true})

	visible, err := f.store.ListThreads(ctx, false)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "t1", visible[0].ID)

	all, err := f.store.ListThreads(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSetTitleOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.store.CreateThread(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, created.Title)

	require.NoError(t, f.store.SetTitleOnce(ctx, created.ID, "first question"))
	require.NoError(t, f.store.SetTitleOnce(ctx, created.ID, "second question"))

	got, err := f.store.GetThread(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "first question", got.Title, "a titled thread is never retitled")
}

func TestHideNonActiveThreadKeepsPointer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.store.CreateThread(ctx, nil)
	require.NoError(t, err)
	second, err := f.store.CreateThread(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, second.ID, f.activeID(t))

	require.NoError(t, f.store.HideThread(ctx, first.ID))

	assert.Equal(t, second.ID, f.activeID(t), "hiding a non-active thread must not move the pointer")

	visible, err := f.store.ListThreads(ctx, false)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, second.ID, visible[0].ID)
}

func TestHideActiveThreadMovesPointer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.store.CreateThread(ctx, nil)
	require.NoError(t, err)
	second, err := f.store.CreateThread(ctx, nil)
	require.NoError(t, err)

	require.NoError(t, f.store.HideThread(ctx, second.ID))

	assert.Equal(t, first.ID, f.activeID(t), "the pointer moves to a remaining visible thread")
}

func TestHideLastThreadCreatesReplacement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	only, err := f.store.CreateThread(ctx, nil)
	require.NoError(t, err)

	require.NoError(t, f.store.HideThread(ctx, only.ID))

	active := f.activeID(t)
	assert.NotEqual(t, only.ID, active)

	visible, err := f.store.ListThreads(ctx, false)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, active, visible[0].ID)
}

func TestBranchFromMessageCopiesPriorNonSystemMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f.backend.Seed(threadsCollection, Thread{ID: "src", CreatedAt: base, UpdatedAt: base})
	f.seedMessage("m0", "src", RoleSystem, "you are helpful", base)
	f.seedMessage("m1", "src", RoleUser, "question", base.Add(time.Minute))
	f.seedMessage("m2", "src", RoleAssistant, "answer", base.Add(2*time.Minute))
	f.seedMessage("m3", "src", RoleUser, "followup", base.Add(3*time.Minute))

	newID, err := f.store.BranchFromMessage(ctx, "src", "m3")
	require.NoError(t, err)
	require.NotEmpty(t, newID)
	require.NotEqual(t, "src", newID)

	copied, err := f.store.Messages(ctx, newID)
	require.NoError(t, err)
	require.Len(t, copied, 2, "system message excluded, branch point and after excluded")

	assert.Equal(t, RoleUser, copied[0].Role)
	assert.Equal(t, "question", copied[0].Text())
	assert.Equal(t, RoleAssistant, copied[1].Role)
	assert.Equal(t, "answer", copied[1].Text())

	for i, m := range copied {
		assert.NotContains(t, []string{"m0", "m1", "m2", "m3"}, m.ID, "copies get fresh ids")
		assert.Equal(t, newID, m.Metadata.ThreadID)
		assert.True(t, m.Metadata.CreatedAt.Equal(base.Add(time.Duration(i+1)*time.Minute)),
			"original timestamps are preserved so the prefix replays in order")
	}

	// The source thread is untouched.
	src, err := f.store.Messages(ctx, "src")
	require.NoError(t, err)
	assert.Len(t, src, 4)

	assert.Equal(t, newID, f.activeID(t))
}

func TestBranchFromUnknownMessageIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	base := time.Now().UTC()
	f.backend.Seed(threadsCollection, Thread{ID: "src", CreatedAt: base, UpdatedAt: base})
	f.seedMessage("m1", "src", RoleUser, "question", base)

	before := f.backend.CallCount("COLLECTION_THREADS_CREATE")

	newID, err := f.store.BranchFromMessage(ctx, "src", "ghost")
	require.NoError(t, err)
	assert.Empty(t, newID)
	assert.Equal(t, before, f.backend.CallCount("COLLECTION_THREADS_CREATE"),
		"no thread is created for an unknown branch point")
}

func TestBranchClearsEditContext(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	base := time.Now().UTC()
	f.backend.Seed(threadsCollection, Thread{ID: "src", CreatedAt: base, UpdatedAt: base})
	f.seedMessage("m1", "src", RoleUser, "question", base)

	f.store.StartEdit("src", "m1", "question")
	require.NotNil(t, f.store.Branch())

	_, err := f.store.BranchFromMessage(ctx, "src", "m1")
	require.NoError(t, err)
	assert.Nil(t, f.store.Branch())
}

func TestActiveThreadInitializesFresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.store.ActiveThread(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	assert.Equal(t, id, f.activeID(t))

	// Stable across calls.
	again, err := f.store.ActiveThread(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	// The fresh id's message list is prefilled.
	msgs, err := f.store.Messages(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Equal(t, 0, f.backend.CallCount("COLLECTION_THREAD_MESSAGES_LIST"))
}

func TestActiveThreadHealsHiddenPointer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	now := time.Now().UTC()
	f.backend.Seed(threadsCollection, Thread{ID: "t1", CreatedAt: now, UpdatedAt: now, Hidden: true})
	f.backend.Seed(threadsCollection, Thread{ID: "t2", CreatedAt: now, UpdatedAt: now})

	require.NoError(t, f.state.Set(devstate.ScopedKey(activeThreadName, f.scope.Key()), "t1"))

	id, err := f.store.ActiveThread(ctx)
	require.NoError(t, err)
	assert.Equal(t, "t2", id)
	assert.Equal(t, "t2", f.activeID(t))
}

func TestOfflineSnapshotAfterCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.store.CreateThread(ctx, &Thread{Title: "mirrored"})
	require.NoError(t, err)

	snap, err := f.store.OfflineSnapshot(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, snap.Thread.ID)
	assert.Equal(t, "mirrored", snap.Thread.Title)
}

func TestTitleFromMessage(t *testing.T) {
	short := Message{Parts: []Part{{Type: "text", Text: "  what is a monad?  "}}}
	assert.Equal(t, "what is a monad?", TitleFromMessage(short))

	long := Message{Parts: []Part{{Type: "text", Text: strings.Repeat("x", 200)}}}
	assert.Len(t, TitleFromMessage(long), maxTitleLen)

	image := Message{Parts: []Part{{Type: "image"}}}
	assert.Empty(t, TitleFromMessage(image))
}
