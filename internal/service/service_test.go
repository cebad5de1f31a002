package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geo-challenge/internal/geofence"
	"geo-challenge/internal/model"
	"geo-challenge/internal/notify"
	"geo-challenge/internal/photo"
	"geo-challenge/internal/pkg/lock"
	"geo-challenge/internal/repository"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)

type fakePhotos struct {
	mu      sync.Mutex
	keys    []string
	deleted []string
	err     error
}

func (f *fakePhotos) Put(_ context.Context, key string, _ model.Photo) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.keys = append(f.keys, key)
	return "mem://" + key, nil
}

func (f *fakePhotos) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakePhotos) stored() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.keys...)
}

type fakeScorer struct {
	mu    sync.Mutex
	score float64
	err   error
	calls int
	refs  []string
}

func (f *fakeScorer) Score(_ context.Context, ref string, _ model.Photo) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.refs = append(f.refs, ref)
	return f.score, f.err
}

type fakeAnnouncer struct {
	mu     sync.Mutex
	solves []notify.Solve
}

func (f *fakeAnnouncer) Announce(s notify.Solve) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.solves = append(f.solves, s)
}

type testEnv struct {
	repo       *repository.MemoryChallengeRepository
	attempts   *repository.MemoryAttemptRepository
	photos     *fakePhotos
	scorer     *fakeScorer
	announcer  *fakeAnnouncer
	challenges *ChallengeService
	ledger     *Ledger
	ranking    *RankingService
	guesses    *GuessService
}

func newTestEnv() *testEnv {
	challengeRepo := repository.NewMemoryChallengeRepository()
	attemptRepo := repository.NewMemoryAttemptRepository(challengeRepo)
	photos := &fakePhotos{}
	scorer := &fakeScorer{}
	announcer := &fakeAnnouncer{}
	validator := photo.NewValidator(1<<20, []string{"image/png", "image/jpeg"})

	ranking := NewRankingService(challengeRepo, attemptRepo)
	ledger := NewLedger(attemptRepo, lock.NewKeyLock(), time.Second)

	return &testEnv{
		repo:       challengeRepo,
		attempts:   attemptRepo,
		photos:     photos,
		scorer:     scorer,
		announcer:  announcer,
		challenges: NewChallengeService(challengeRepo, photos, validator),
		ledger:     ledger,
		ranking:    ranking,
		guesses: NewGuessService(GuessDependencies{
			Challenges: challengeRepo,
			Ledger:     ledger,
			Evaluator:  geofence.NewEvaluator(geofence.DefaultToleranceMeters),
			Scorer:     scorer,
			Threshold:  0.8,
			Photos:     photos,
			Validator:  validator,
			Announcer:  announcer,
		}),
	}
}

func square() model.Polygon {
	return model.Polygon{Rings: []model.Ring{{
		{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}, {Lat: 1, Lng: 1}, {Lat: 1, Lng: 0},
	}}}
}

func pngPhoto() *model.Photo {
	return &model.Photo{Filename: "shot.png", Data: pngBytes}
}

func (e *testEnv) createSquare(t *testing.T) *model.Challenge {
	t.Helper()
	c, err := e.challenges.Create(context.Background(), CreateChallengeInput{
		Title:     "Null island",
		CreatorID: "creator",
		Boundary:  square(),
		Photo:     pngPhoto(),
	})
	require.NoError(t, err)
	return c
}

func coord(lat, lng float64) *model.Coordinate {
	return &model.Coordinate{Lat: lat, Lng: lng}
}

// ============================================================================
// ChallengeService Tests
// ============================================================================

func TestChallengeService_Create(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	c := env.createSquare(t)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "mem://challenges/"+c.ID, c.PhotoRef)
	assert.False(t, c.CreatedAt.IsZero())

	got, err := env.challenges.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Boundary, got.Boundary)
}

func TestChallengeService_CreateNormalizesClosedRing(t *testing.T) {
	env := newTestEnv()
	b := square()
	b.Rings[0] = append(b.Rings[0], model.Coordinate{Lat: 0, Lng: 0})

	c, err := env.challenges.Create(context.Background(), CreateChallengeInput{
		Title: "closed", CreatorID: "u", Boundary: b, Photo: pngPhoto(),
	})
	require.NoError(t, err)
	assert.Len(t, c.Boundary.Rings[0], 4)
}

func TestChallengeService_CreateRejects(t *testing.T) {
	tests := []struct {
		name    string
		in      CreateChallengeInput
		wantErr error
	}{
		{
			name: "degenerate boundary",
			in: CreateChallengeInput{Title: "t", CreatorID: "u", Photo: pngPhoto(),
				Boundary: model.Polygon{Rings: []model.Ring{{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}}}}},
			wantErr: ErrInvalidBoundary,
		},
		{
			name: "self intersecting",
			in: CreateChallengeInput{Title: "t", CreatorID: "u", Photo: pngPhoto(),
				Boundary: model.Polygon{Rings: []model.Ring{{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 2}, {Lat: 1, Lng: 0}, {Lat: 0, Lng: 1}}}}},
			wantErr: ErrInvalidBoundary,
		},
		{
			name:    "no boundary",
			in:      CreateChallengeInput{Title: "t", CreatorID: "u", Photo: pngPhoto()},
			wantErr: ErrInvalidBoundary,
		},
		{
			name:    "missing photo",
			in:      CreateChallengeInput{Title: "t", CreatorID: "u", Boundary: square()},
			wantErr: ErrInvalidPhoto,
		},
		{
			name: "unsupported photo",
			in: CreateChallengeInput{Title: "t", CreatorID: "u", Boundary: square(),
				Photo: &model.Photo{Data: []byte("GIF89a..........")}},
			wantErr: ErrInvalidPhoto,
		},
		{
			name:    "missing title",
			in:      CreateChallengeInput{Title: "  ", CreatorID: "u", Boundary: square(), Photo: pngPhoto()},
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "missing creator",
			in:      CreateChallengeInput{Title: "t", Boundary: square(), Photo: pngPhoto()},
			wantErr: ErrInvalidRequest,
		},
		{
			name: "title too long",
			in: CreateChallengeInput{Title: strings.Repeat("x", 201), CreatorID: "u",
				Boundary: square(), Photo: pngPhoto()},
			wantErr: ErrInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			_, err := env.challenges.Create(context.Background(), tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, env.photos.keys, "nothing may be uploaded for a rejected challenge")

			list, err := env.challenges.List(context.Background(), 0, 0)
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
}

func TestChallengeService_CreatePhotoStoreFailure(t *testing.T) {
	env := newTestEnv()
	env.photos.err = errors.New("bucket gone")

	_, err := env.challenges.Create(context.Background(), CreateChallengeInput{
		Title: "t", CreatorID: "u", Boundary: square(), Photo: pngPhoto(),
	})
	assert.ErrorIs(t, err, ErrStorageFailure)
}

// rejectingChallenges fails every Create after the photo upload succeeded.
type rejectingChallenges struct {
	ChallengeStore
}

func (rejectingChallenges) Create(context.Context, *model.Challenge) error {
	return errors.New("connection reset")
}

func TestChallengeService_CreateFailureDiscardsPhoto(t *testing.T) {
	env := newTestEnv()
	validator := photo.NewValidator(1<<20, []string{"image/png"})
	svc := NewChallengeService(rejectingChallenges{env.repo}, env.photos, validator)

	_, err := svc.Create(context.Background(), CreateChallengeInput{
		Title: "t", CreatorID: "u", Boundary: square(), Photo: pngPhoto(),
	})
	assert.ErrorIs(t, err, ErrStorageFailure)

	keys := env.photos.stored()
	require.Len(t, keys, 1)
	assert.Equal(t, keys, env.photos.deleted)
}

func TestChallengeService_GetNotFound(t *testing.T) {
	env := newTestEnv()
	_, err := env.challenges.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChallengeService_ListPaging(t *testing.T) {
	env := newTestEnv()
	for i := 0; i < 3; i++ {
		env.createSquare(t)
	}
	ctx := context.Background()

	all, err := env.challenges.List(ctx, -5, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	page, err := env.challenges.List(ctx, 1, 1)
	require.NoError(t, err)
	assert.Len(t, page, 1)

	huge, err := env.challenges.List(ctx, 0, 10_000)
	require.NoError(t, err)
	assert.Len(t, huge, 3)
}

// ============================================================================
// GuessService Tests
// ============================================================================

func TestGuessService_SquareScenario(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	c := env.createSquare(t)

	a, err := env.guesses.Evaluate(ctx, GuessInput{ChallengeID: c.ID, UserID: "user1", Coordinate: coord(0.5, 0.5)})
	require.NoError(t, err)
	assert.Equal(t, model.VerdictCorrect, a.Verdict)
	assert.Equal(t, 1, a.AttemptNumber)
	require.NotNil(t, a.DistanceMeters)
	assert.Zero(t, *a.DistanceMeters)

	b, err := env.guesses.Evaluate(ctx, GuessInput{ChallengeID: c.ID, UserID: "user2", Coordinate: coord(5, 5)})
	require.NoError(t, err)
	assert.Equal(t, model.VerdictIncorrect, b.Verdict)
	assert.Equal(t, 1, b.AttemptNumber)
	require.NotNil(t, b.DistanceMeters)
	assert.Greater(t, *b.DistanceMeters, 0.0)
	assert.Contains(t, b.Feedback, "outside the target region")
	assert.Contains(t, b.Feedback, "south-west")

	b2, err := env.guesses.Evaluate(ctx, GuessInput{ChallengeID: c.ID, UserID: "user2", Coordinate: coord(0.5, 0.5)})
	require.NoError(t, err)
	assert.Equal(t, model.VerdictCorrect, b2.Verdict)
	assert.Equal(t, 2, b2.AttemptNumber)

	board, err := env.ranking.Rank(ctx, c.ID, 0)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "user1", board[0].UserID)
	assert.Equal(t, 1, board[0].WinningAttemptCount)
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, "user2", board[1].UserID)
	assert.Equal(t, 2, board[1].WinningAttemptCount)
	assert.Equal(t, 2, board[1].Rank)

	require.Len(t, env.announcer.solves, 2)
	assert.Equal(t, "user1", env.announcer.solves[0].Attempt.UserID)
}

func TestGuessService_AlreadySolvedLeavesLedgerUnchanged(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	c := env.createSquare(t)

	_, err := env.guesses.Evaluate(ctx, GuessInput{ChallengeID: c.ID, UserID: "u", Coordinate: coord(0.5, 0.5)})
	require.NoError(t, err)

	before, err := env.ledger.ListForUser(ctx, c.ID, "u")
	require.NoError(t, err)

	_, err = env.guesses.Evaluate(ctx, GuessInput{ChallengeID: c.ID, UserID: "u", Coordinate: coord(5, 5)})
	assert.ErrorIs(t, err, ErrAlreadySolved)
	_, err = env.guesses.Evaluate(ctx, GuessInput{ChallengeID: c.ID, UserID: "u", Photo: pngPhoto()})
	assert.ErrorIs(t, err, ErrAlreadySolved)

	after, err := env.ledger.ListForUser(ctx, c.ID, "u")
	require.NoError(t, err)
	assert.Equal(t, len(before), len(after))
	assert.Zero(t, env.scorer.calls)
}

func TestGuessService_Preconditions(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	c := env.createSquare(t)

	_, err := env.guesses.Evaluate(ctx, GuessInput{ChallengeID: "missing", UserID: "u", Coordinate: coord(0.5, 0.5)})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.guesses.Evaluate(ctx, GuessInput{ChallengeID: c.ID, UserID: "u"})
	assert.ErrorIs(t, err, ErrEmptyGuess)

	_, err = env.guesses.Evaluate(ctx, GuessInput{ChallengeID: c.ID, Coordinate: coord(0.5, 0.5)})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = env.guesses.Evaluate(ctx, GuessInput{ChallengeID: c.ID, UserID: "u", Coordinate: coord(91, 0)})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = env.guesses.Evaluate(ctx, GuessInput{ChallengeID: c.ID, UserID: "u", Photo: &model.Photo{Data: []byte("plain text")}})
	assert.ErrorIs(t, err, ErrInvalidPhoto)

	list, err := env.ledger.ListForUser(ctx, c.ID, "u")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestGuessService_PhotoOnly(t *testing.T) {
	tests := []struct {
		name        string
		score       float64
		wantVerdict model.Verdict
		wantText    string
	}{
		{"match", 0.93, model.VerdictCorrect, "Correct!"},
		{"at threshold is not enough", 0.8, model.VerdictIncorrect, "Very close"},
		{"warmer", 0.6, model.VerdictIncorrect, "Getting warmer"},
		{"far", 0.1, model.VerdictIncorrect, "Not quite"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			ctx := context.Background()
			c := env.createSquare(t)
			env.scorer.score = tt.score

			a, err := env.guesses.Evaluate(ctx, GuessInput{ChallengeID: c.ID, UserID: "u", Photo: pngPhoto()})
			require.NoError(t, err)
			assert.Equal(t, tt.wantVerdict, a.Verdict)
			assert.Contains(t, a.Feedback, tt.wantText)
			require.NotNil(t, a.SimilarityScore)
			assert.InDelta(t, tt.score, *a.SimilarityScore, 1e-9)
			assert.Nil(t, a.Coordinate)
			assert.Nil(t, a.DistanceMeters)
			require.NotNil(t, a.PhotoRef)
			assert.True(t, strings.HasPrefix(*a.PhotoRef, "mem://guesses/"+c.ID+"/u/"))
			assert.Equal(t, []string{c.PhotoRef}, env.scorer.refs)
		})
	}
}

func TestGuessService_ScoringUnavailable(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	c := env.createSquare(t)
	env.scorer.err = errors.New("timeout")

	_, err := env.guesses.Evaluate(ctx, GuessInput{ChallengeID: c.ID, UserID: "u", Photo: pngPhoto()})
	assert.ErrorIs(t, err, ErrScoringUnavailable)

	list, err := env.ledger.ListForUser(ctx, c.ID, "u")
	require.NoError(t, err)
	assert.Empty(t, list, "a scoring failure must not be recorded as Incorrect")
	assert.Equal(t, []string{photo.ChallengeKey(c.ID)}, env.photos.stored(), "no guess photo is kept without an attempt")
}

// solvedElsewhere passes the early solved check but refuses the append, as
// when a concurrent request wins the pair first.
type solvedElsewhere struct {
	AttemptStore
}

func (solvedElsewhere) HasSolved(context.Context, string, string) (bool, error) {
	return false, nil
}

func (solvedElsewhere) Append(context.Context, *model.Attempt) (*model.Attempt, error) {
	return nil, repository.ErrAlreadySolved
}

func TestGuessService_RefusedAppendDiscardsPhoto(t *testing.T) {
	env := newTestEnv()
	c := env.createSquare(t)
	env.scorer.score = 0.95
	env.guesses.ledger = NewLedger(solvedElsewhere{env.attempts}, lock.NewKeyLock(), time.Second)

	_, err := env.guesses.Evaluate(context.Background(), GuessInput{ChallengeID: c.ID, UserID: "u", Photo: pngPhoto()})
	assert.ErrorIs(t, err, ErrAlreadySolved)

	keys := env.photos.stored()
	require.Len(t, keys, 2)
	assert.True(t, strings.HasPrefix(keys[1], "guesses/"+c.ID+"/u/"))
	assert.Equal(t, keys[1:], env.photos.deleted)
	assert.Empty(t, env.announcer.solves)
}

func TestGuessService_NoScorerConfigured(t *testing.T) {
	env := newTestEnv()
	env.guesses.scorer = nil
	c := env.createSquare(t)

	_, err := env.guesses.Evaluate(context.Background(), GuessInput{ChallengeID: c.ID, UserID: "u", Photo: pngPhoto()})
	assert.ErrorIs(t, err, ErrScoringUnavailable)
}

func TestGuessService_CoordinateWinsOverPhoto(t *testing.T) {
	env := newTestEnv()
	c := env.createSquare(t)
	env.scorer.score = 1

	a, err := env.guesses.Evaluate(context.Background(), GuessInput{
		ChallengeID: c.ID, UserID: "u", Coordinate: coord(5, 5), Photo: pngPhoto(),
	})
	require.NoError(t, err)
	assert.Equal(t, model.VerdictIncorrect, a.Verdict)
	assert.NotNil(t, a.PhotoRef)
	assert.Nil(t, a.SimilarityScore)
	assert.Zero(t, env.scorer.calls)
}

func TestGuessService_ConcurrentCorrectGuessesSolveOnce(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	c := env.createSquare(t)

	const n = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		correct int
		solved  int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.guesses.Evaluate(ctx, GuessInput{ChallengeID: c.ID, UserID: "u", Coordinate: coord(0.5, 0.5)})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				correct++
			case errors.Is(err, ErrAlreadySolved):
				solved++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, correct)
	assert.Equal(t, n-1, solved)

	list, err := env.ledger.ListForUser(ctx, c.ID, "u")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].AttemptNumber)
}

// ============================================================================
// RankingService Tests
// ============================================================================

func TestRankingService_ReadYourWrites(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	c := env.createSquare(t)

	board, err := env.ranking.Rank(ctx, c.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, board)

	_, err = env.guesses.Evaluate(ctx, GuessInput{ChallengeID: c.ID, UserID: "a", Coordinate: coord(0.5, 0.5)})
	require.NoError(t, err)

	board, err = env.ranking.Rank(ctx, c.ID, 0)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, "a", board[0].UserID)
}

func TestRankingService_SeesSolvesFromAnotherProcess(t *testing.T) {
	ctx := context.Background()
	challenges := repository.NewMemoryChallengeRepository()
	attempts := repository.NewMemoryAttemptRepository(challenges)
	require.NoError(t, challenges.Create(ctx, &model.Challenge{ID: "c1", CreatorID: "creator", Boundary: square()}))

	rankingA := NewRankingService(challenges, attempts)
	ledgerB := NewLedger(attempts, lock.NewKeyLock(), time.Second)

	board, err := rankingA.Rank(ctx, "c1", 0)
	require.NoError(t, err)
	assert.Empty(t, board)

	a, err := ledgerB.Append(ctx, &model.Attempt{ChallengeID: "c1", UserID: "bob", Verdict: model.VerdictCorrect})
	require.NoError(t, err)
	assert.Equal(t, 1, a.AttemptNumber)

	board, err = rankingA.Rank(ctx, "c1", 0)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, "bob", board[0].UserID)
}

func TestRankingService_LimitAndCopies(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	c := env.createSquare(t)

	for _, u := range []string{"a", "b", "c"} {
		_, err := env.guesses.Evaluate(ctx, GuessInput{ChallengeID: c.ID, UserID: u, Coordinate: coord(0.5, 0.5)})
		require.NoError(t, err)
	}

	top, err := env.ranking.Rank(ctx, c.ID, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	top[0].UserID = "mutated"

	again, err := env.ranking.Rank(ctx, c.ID, 0)
	require.NoError(t, err)
	require.Len(t, again, 3)
	assert.NotEqual(t, "mutated", again[0].UserID)
}

func TestRankingService_NotFound(t *testing.T) {
	env := newTestEnv()
	_, err := env.ranking.Rank(context.Background(), "missing", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

// ============================================================================
// Ledger Tests
// ============================================================================

// blockingStore holds every Append until release is closed.
type blockingStore struct {
	AttemptStore
	entered chan struct{}
	release chan struct{}
}

func (s *blockingStore) Append(ctx context.Context, d *model.Attempt) (*model.Attempt, error) {
	s.entered <- struct{}{}
	<-s.release
	return s.AttemptStore.Append(ctx, d)
}

func TestLedger_BusyPairTimesOut(t *testing.T) {
	env := newTestEnv()
	c := env.createSquare(t)
	store := &blockingStore{AttemptStore: env.attempts, entered: make(chan struct{}, 1), release: make(chan struct{})}
	ledger := NewLedger(store, lock.NewKeyLock(), 20*time.Millisecond)
	ctx := context.Background()

	first := make(chan error, 1)
	go func() {
		_, err := ledger.Append(ctx, &model.Attempt{ChallengeID: c.ID, UserID: "u", Verdict: model.VerdictIncorrect})
		first <- err
	}()
	<-store.entered

	_, err := ledger.Append(ctx, &model.Attempt{ChallengeID: c.ID, UserID: "u", Verdict: model.VerdictIncorrect})
	assert.ErrorIs(t, err, ErrStorageFailure)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = ledger.Append(cancelled, &model.Attempt{ChallengeID: c.ID, UserID: "u", Verdict: model.VerdictIncorrect})
	assert.ErrorIs(t, err, ErrStorageFailure)
	assert.ErrorIs(t, err, context.Canceled)

	close(store.release)
	require.NoError(t, <-first)
	a, err := ledger.Append(ctx, &model.Attempt{ChallengeID: c.ID, UserID: "v", Verdict: model.VerdictIncorrect})
	require.NoError(t, err)
	assert.Equal(t, 1, a.AttemptNumber)

	list, err := ledger.ListForUser(ctx, c.ID, "u")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

// ============================================================================
// StatsService Tests
// ============================================================================

func TestStatsService(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	c := env.createSquare(t)
	stats := NewStatsService(env.repo, env.attempts)

	_, err := env.guesses.Evaluate(ctx, GuessInput{ChallengeID: c.ID, UserID: "alice", Coordinate: coord(5, 5)})
	require.NoError(t, err)
	_, err = env.guesses.Evaluate(ctx, GuessInput{ChallengeID: c.ID, UserID: "alice", Coordinate: coord(0.5, 0.5)})
	require.NoError(t, err)

	got, err := stats.Stats(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, &model.UserStats{UserID: "alice", ChallengesSolved: 1, TotalGuesses: 2}, got)

	got, err = stats.Stats(ctx, "creator")
	require.NoError(t, err)
	assert.Equal(t, &model.UserStats{UserID: "creator", ChallengesCreated: 1}, got)

	_, err = stats.Stats(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

// ============================================================================
// Feedback Tests
// ============================================================================

func TestFormatDistance(t *testing.T) {
	assert.Equal(t, "1 meter", formatDistance(1.2))
	assert.Equal(t, "12 meters", formatDistance(12.4))
	assert.Equal(t, "999 meters", formatDistance(999.4))
	assert.Equal(t, "1.5 km", formatDistance(1540))
	assert.Equal(t, "628.6 km", formatDistance(628_600))
}

func TestCoordinateFeedback(t *testing.T) {
	assert.Equal(t, "Correct! Your guess is inside the target region.", coordinateFeedback(geofence.Result{Inside: true}))
	assert.Equal(t,
		"Not quite. You are approximately 250 meters outside the target region; try heading east.",
		coordinateFeedback(geofence.Result{DistanceMeters: 250, BearingDegrees: 90}))
}
