package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cooperative-ai/backend/internal/ai"
	"cooperative-ai/backend/internal/models"
	"cooperative-ai/backend/internal/repository"
	apperrors "cooperative-ai/backend/pkg/errors"
	"cooperative-ai/backend/pkg/cache"
	"cooperative-ai/backend/pkg/jwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingGateway returns a fixed reply and records every transcript
type recordingGateway struct {
	mu    sync.Mutex
	reply string
	err   error
	seen  [][]string
}

func (g *recordingGateway) Complete(_ context.Context, transcript []string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seen = append(g.seen, append([]string(nil), transcript...))
	return g.reply, g.err
}

type brokenRepo struct {
	repository.UserRepository
	saveErr error
	findErr error
}

func (r brokenRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	return r.UserRepository.FindByID(ctx, id)
}

func (r brokenRepo) Save(ctx context.Context, u *models.User) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	return r.UserRepository.Save(ctx, u)
}

func seededRepo(users ...*models.User) *repository.MemoryUserRepository {
	return repository.NewMemoryUserRepository(users...)
}

func userWith(id string, msgs ...models.ChatMessage) *models.User {
	u := &models.User{ID: id}
	for _, m := range msgs {
		u.AppendMessage(m.Role, m.Content)
	}
	return u
}

func assertKind(t *testing.T, err error, status int, code string) {
	t.Helper()
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, status, appErr.StatusCode)
	assert.Equal(t, code, appErr.Code)
}

func TestCreateCompletionAppendsUserThenModel(t *testing.T) {
	ctx := context.Background()
	repo := seededRepo(userWith("a"))
	gw := &recordingGateway{reply: "hi there"}
	svc := NewChatService(repo, gw)

	chats, err := svc.CreateCompletion(ctx, jwt.Identity{UserID: "a"}, "hello")
	require.NoError(t, err)

	want := []models.ChatMessage{
		{Role: models.RoleUser, Content: "hello"},
		{Role: models.RoleModel, Content: "hi there"},
	}
	assert.Equal(t, want, chats)

	stored, err := repo.FindByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, want, stored.History())
}

func TestCreateCompletionForwardsRawTranscript(t *testing.T) {
	ctx := context.Background()
	repo := seededRepo(userWith("a"))
	gw := &recordingGateway{reply: "first"}
	svc := NewChatService(repo, gw)

	_, err := svc.CreateCompletion(ctx, jwt.Identity{UserID: "a"}, "hello")
	require.NoError(t, err)
	require.Len(t, gw.seen, 1)
	assert.Equal(t, []string{"hello"}, gw.seen[0])

	// Prior turns are sent as plain contents, model replies included, with no roles
	_, err = svc.CreateCompletion(ctx, jwt.Identity{UserID: "a"}, "and again")
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "first", "and again"}, gw.seen[1])
}

func TestCreateCompletionLooksUpOnlyTheCaller(t *testing.T) {
	repo := seededRepo(userWith("a"), userWith("b"))
	svc := NewChatService(repo, &recordingGateway{reply: "ok"})

	_, err := svc.CreateCompletion(context.Background(), jwt.Identity{UserID: "a"}, "hello")
	require.NoError(t, err)

	for _, id := range repo.FindCalls() {
		assert.Equal(t, "a", id)
	}
	assert.NotEmpty(t, repo.FindCalls())

	b, _ := repo.FindByID(context.Background(), "b")
	assert.Empty(t, b.Chats)
}

func TestCreateCompletionUnknownUser(t *testing.T) {
	gw := &recordingGateway{reply: "x"}
	svc := NewChatService(seededRepo(), gw)

	_, err := svc.CreateCompletion(context.Background(), jwt.Identity{UserID: "ghost"}, "hello")
	assertKind(t, err, 401, "USER_NOT_REGISTERED")
	assert.Empty(t, gw.seen)
}

func TestCreateCompletionGatewayFailureLeavesOrphanedTurn(t *testing.T) {
	ctx := context.Background()
	repo := seededRepo(userWith("a"))
	gw := &recordingGateway{err: errors.New("quota exceeded")}
	svc := NewChatService(repo, gw)

	_, err := svc.CreateCompletion(ctx, jwt.Identity{UserID: "a"}, "hello")
	assertKind(t, err, 500, "UPSTREAM_ERROR")
	assert.Equal(t, apperrors.MsgGeneric, err.(*apperrors.AppError).Message)
	assert.NotContains(t, err.(*apperrors.AppError).Message, "quota")

	stored, err := repo.FindByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []models.ChatMessage{{Role: models.RoleUser, Content: "hello"}}, stored.History())
}

func TestCreateCompletionPersistenceFailure(t *testing.T) {
	repo := brokenRepo{UserRepository: seededRepo(userWith("a")), saveErr: errors.New("connection reset")}
	gw := &recordingGateway{reply: "x"}
	svc := NewChatService(repo, gw)

	_, err := svc.CreateCompletion(context.Background(), jwt.Identity{UserID: "a"}, "hello")
	assertKind(t, err, 500, "PERSISTENCE_ERROR")
	assert.Empty(t, gw.seen)
}

func TestListHistory(t *testing.T) {
	repo := seededRepo(userWith("a", models.ChatMessage{Role: models.RoleUser, Content: "q"}, models.ChatMessage{Role: models.RoleModel, Content: "r"}))
	svc := NewChatService(repo, &recordingGateway{})

	chats, err := svc.ListHistory(context.Background(), jwt.Identity{UserID: "a"}, "")
	require.NoError(t, err)
	assert.Len(t, chats, 2)

	chats, err = svc.ListHistory(context.Background(), jwt.Identity{UserID: "a"}, "a")
	require.NoError(t, err)
	assert.Len(t, chats, 2)
}

func TestListHistoryEmptyIsNotNil(t *testing.T) {
	svc := NewChatService(seededRepo(userWith("a")), &recordingGateway{})

	chats, err := svc.ListHistory(context.Background(), jwt.Identity{UserID: "a"}, "")
	require.NoError(t, err)
	assert.NotNil(t, chats)
	assert.Len(t, chats, 0)
}

func TestOwnershipIsCheckedAfterExistence(t *testing.T) {
	ctx := context.Background()
	repo := seededRepo(
		userWith("a"),
		userWith("b", models.ChatMessage{Role: models.RoleUser, Content: "secret"}),
	)
	svc := NewChatService(repo, &recordingGateway{})
	caller := jwt.Identity{UserID: "a"}

	_, err := svc.ListHistory(ctx, caller, "b")
	assertKind(t, err, 401, "PERMISSION_MISMATCH")

	err = svc.ClearHistory(ctx, caller, "b")
	assertKind(t, err, 401, "PERMISSION_MISMATCH")

	b, _ := repo.FindByID(ctx, "b")
	assert.Len(t, b.Chats, 1)

	// An unknown caller fails the existence check first
	_, err = svc.ListHistory(ctx, jwt.Identity{UserID: "ghost"}, "b")
	assertKind(t, err, 401, "USER_NOT_REGISTERED")
}

func TestClearHistoryIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := seededRepo(userWith("a",
		models.ChatMessage{Role: models.RoleUser, Content: "1"},
		models.ChatMessage{Role: models.RoleModel, Content: "2"},
		models.ChatMessage{Role: models.RoleUser, Content: "3"},
	))
	svc := NewChatService(repo, &recordingGateway{})
	caller := jwt.Identity{UserID: "a"}

	for i := 0; i < 2; i++ {
		require.NoError(t, svc.ClearHistory(ctx, caller, ""))
		chats, err := svc.ListHistory(ctx, caller, "")
		require.NoError(t, err)
		assert.Len(t, chats, 0)
	}
}

func TestListAndClearStoreFailures(t *testing.T) {
	caller := jwt.Identity{UserID: "a"}

	svc := NewChatService(brokenRepo{UserRepository: seededRepo(), findErr: errors.New("timeout")}, &recordingGateway{})
	_, err := svc.ListHistory(context.Background(), caller, "")
	assertKind(t, err, 500, "PERSISTENCE_ERROR")

	svc = NewChatService(brokenRepo{UserRepository: seededRepo(userWith("a")), saveErr: errors.New("timeout")}, &recordingGateway{})
	err = svc.ClearHistory(context.Background(), caller, "")
	assertKind(t, err, 500, "PERSISTENCE_ERROR")
}

// barrierRepo holds every FindByID until n loads have happened, so that
// concurrent requests all read the same stored version.
type barrierRepo struct {
	repository.UserRepository
	loaded *sync.WaitGroup
}

func (r barrierRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, err := r.UserRepository.FindByID(ctx, id)
	r.loaded.Done()
	r.loaded.Wait()
	return u, err
}

// Two completions for the same user that both load before either saves:
// the later save overwrites the earlier one's turns.
func TestConcurrentCompletionsLoseUpdates(t *testing.T) {
	ctx := context.Background()
	inner := seededRepo(userWith("a"))

	var loaded sync.WaitGroup
	loaded.Add(2)
	gw := ai.GatewayFunc(func(_ context.Context, transcript []string) (string, error) {
		return "re:" + transcript[len(transcript)-1], nil
	})
	svc := NewChatService(barrierRepo{UserRepository: inner, loaded: &loaded}, gw)

	var done sync.WaitGroup
	for _, msg := range []string{"one", "two"} {
		done.Add(1)
		go func(msg string) {
			defer done.Done()
			_, err := svc.CreateCompletion(ctx, jwt.Identity{UserID: "a"}, msg)
			assert.NoError(t, err)
		}(msg)
	}
	done.Wait()

	stored, err := inner.FindByID(ctx, "a")
	require.NoError(t, err)
	require.Len(t, stored.Chats, 2, "one request's turns are overwritten by the other")
	assert.Equal(t, "re:"+stored.Chats[0].Content, stored.Chats[1].Content)
}

// racingReadRepo saves a newer record through saveVia while the first load
// is in flight, then returns the copy it loaded before that save.
type racingReadRepo struct {
	*repository.MemoryUserRepository
	once    sync.Once
	saveVia func() repository.UserRepository
}

func (r *racingReadRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, err := r.MemoryUserRepository.FindByID(ctx, id)
	r.once.Do(func() {
		newer := userWith(id,
			models.ChatMessage{Role: models.RoleUser, Content: "hi"},
			models.ChatMessage{Role: models.RoleModel, Content: "hello"},
		)
		if err := r.saveVia().Save(ctx, newer); err != nil {
			panic(err)
		}
	})
	return u, err
}

// A history read that overlaps a save must not make a later completion
// overwrite the saved turns.
func TestCompletionAfterOverlappingReadKeepsStoredTurns(t *testing.T) {
	ctx := context.Background()
	store := cache.NewCache(0, 0)
	defer store.Close()

	var cached *repository.CachedUserRepository
	inner := &racingReadRepo{
		MemoryUserRepository: seededRepo(userWith("a")),
		saveVia:              func() repository.UserRepository { return cached },
	}
	cached = repository.NewCachedUserRepository(inner, store, time.Minute)

	gw := &recordingGateway{reply: "ok"}
	svc := NewChatService(cached, gw)
	me := jwt.Identity{UserID: "a"}

	_, err := svc.ListHistory(ctx, me, "")
	require.NoError(t, err)

	_, err = svc.CreateCompletion(ctx, me, "next")
	require.NoError(t, err)

	stored, err := inner.MemoryUserRepository.FindByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"hi", "hello", "next", "ok"}, stored.Transcript())
	assert.Equal(t, []string{"hi", "hello", "next"}, gw.seen[0])

	listed, err := svc.ListHistory(ctx, me, "")
	require.NoError(t, err)
	assert.Len(t, listed, 4)
}

func TestEnsureUser(t *testing.T) {
	ctx := context.Background()
	repo := seededRepo(userWith("a", models.ChatMessage{Role: models.RoleUser, Content: "keep"}))
	svc := NewUserService(repo)

	u, created, err := svc.EnsureUser(ctx, "a", "", "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Len(t, u.Chats, 1)

	u, created, err = svc.EnsureUser(ctx, "new", "New", "new@example.com")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "New", u.Name)

	_, _, err = svc.EnsureUser(ctx, "", "", "")
	assert.Error(t, err)
}
