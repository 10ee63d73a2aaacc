package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"duel-engine/models"
	"duel-engine/testhelpers"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testScope = "guild-1"

type fakeSource struct {
	mu    sync.Mutex
	subs  map[string][]Submission
	fail  map[string]error
	calls map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		subs:  make(map[string][]Submission),
		fail:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (f *fakeSource) FetchAcceptedSubmissions(_ context.Context, handle string, since int64) ([]Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[handle]++
	if err := f.fail[handle]; err != nil {
		return nil, err
	}
	var out []Submission
	for _, s := range f.subs[handle] {
		if s.CreationTimeSeconds >= since {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSource) accept(handle string, sub Submission) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[handle] = append(f.subs[handle], sub)
}

func (f *fakeSource) failFor(handle string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[handle] = err
}

type sinkPost struct {
	Ref   SummaryRef
	State RenderedState
}

type recordingSink struct {
	mu    sync.Mutex
	posts []sinkPost
	err   error
}

func (s *recordingSink) PostOrUpdateSummary(_ context.Context, ref SummaryRef, state RenderedState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = append(s.posts, sinkPost{Ref: ref, State: state})
	return s.err
}

func (s *recordingSink) count(kind, id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.posts {
		if p.Ref.Kind == kind && p.Ref.ID == id {
			n++
		}
	}
	return n
}

func (s *recordingSink) last(kind, id string) (RenderedState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.posts) - 1; i >= 0; i-- {
		if s.posts[i].Ref.Kind == kind && s.posts[i].Ref.ID == id {
			return s.posts[i].State, true
		}
	}
	return RenderedState{}, false
}

type fakeCatalog map[models.ProblemKey]ProblemInfo

func (c fakeCatalog) ResolveProblem(_ context.Context, contestID int, index string) (*ProblemInfo, error) {
	info, ok := c[models.ProblemKey{ContestID: contestID, Index: index}]
	if !ok {
		return nil, nil
	}
	return &info, nil
}

type memArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (a *memArchive) PutRecap(_ context.Context, key string, body []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.objects == nil {
		a.objects = make(map[string][]byte)
	}
	a.objects[key] = body
	return nil
}

var errJudgeDown = errors.New("judge unavailable")

type fixture struct {
	db          *gorm.DB
	handles     *GormHandleStore
	source      *fakeSource
	sink        *recordingSink
	catalog     fakeCatalog
	archive     *memArchive
	challenges  *ChallengeService
	tournaments *TournamentService
	now         time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testhelpers.SetupTestDB(t)
	f := &fixture{
		db:      db,
		handles: NewGormHandleStore(db),
		source:  newFakeSource(),
		sink:    &recordingSink{},
		catalog: fakeCatalog{
			{ContestID: 1000, Index: "A"}: {ContestID: 1000, Index: "A", Name: "Easy Sum", Rating: 1200},
			{ContestID: 1000, Index: "B"}: {ContestID: 1000, Index: "B", Name: "Strings", Rating: 1500},
			{ContestID: 1001, Index: "C"}: {ContestID: 1001, Index: "C", Name: "Graphs", Rating: 1900},
		},
		archive: &memArchive{},
		now:     time.Unix(1000, 0),
	}
	clock := func() time.Time { return f.now }

	f.challenges = NewChallengeService(db, f.handles, f.source, f.sink, DefaultChallengeConfig(), zap.NewNop())
	f.challenges.Now = clock
	f.tournaments = NewTournamentService(db, f.challenges, f.handles, f.source, f.catalog, f.sink, DefaultTournamentConfig(), zap.NewNop())
	f.tournaments.Now = clock
	f.tournaments.Archive = f.archive
	f.challenges.SetCompletionListener(f.tournaments)
	return f
}

func (f *fixture) at(epoch int64) {
	f.now = time.Unix(epoch, 0)
}

func handleOf(userID string) string {
	return "cf_" + userID
}

func (f *fixture) link(t *testing.T, users ...string) {
	t.Helper()
	for _, u := range users {
		require.NoError(t, f.handles.LinkHandle(context.Background(), testScope, u, handleOf(u)))
	}
}

func (f *fixture) setRating(t *testing.T, userID string, rating int) {
	t.Helper()
	require.NoError(t, f.handles.UpdateRating(context.Background(), testScope, userID, rating))
}

func (f *fixture) rating(t *testing.T, userID string) int {
	t.Helper()
	r, err := f.handles.GetRating(context.Background(), testScope, userID)
	require.NoError(t, err)
	return r
}

func (f *fixture) challenge(t *testing.T, id string) *models.Challenge {
	t.Helper()
	ch, err := f.challenges.Store.Get(context.Background(), id)
	require.NoError(t, err)
	return ch
}

func (f *fixture) participant(t *testing.T, ch *models.Challenge, userID string) models.ChallengeParticipant {
	t.Helper()
	for _, p := range ch.Participants {
		if p.UserID == userID {
			return p
		}
	}
	t.Fatalf("participant %s not in challenge %s", userID, ch.ID)
	return models.ChallengeParticipant{}
}

func problemA() ProblemRef {
	return ProblemRef{ContestID: 1000, Index: "A", Name: "Easy Sum", Rating: 1200}
}

func (f *fixture) newChallenge(t *testing.T, host string, users ...string) *models.Challenge {
	t.Helper()
	ch, err := f.challenges.CreateChallenge(context.Background(), ChallengeSpec{
		ScopeID:        testScope,
		HostID:         host,
		Problem:        problemA(),
		LengthMinutes:  40,
		ParticipantIDs: users,
	})
	require.NoError(t, err)
	return ch
}
