package concentration

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/park285/concentration/internal/cache"
	core "github.com/park285/concentration/internal/concentration"
	"github.com/park285/concentration/internal/mailer"
	"github.com/park285/concentration/internal/msgcat"
	"github.com/park285/concentration/internal/store"
	"github.com/park285/concentration/internal/tasks"
	"github.com/park285/concentration/pkg/concentrationdto"
	"github.com/redis/go-redis/v9"
)

type recordingTrigger struct {
	mu    sync.Mutex
	names []string
	err   error
}

func (r *recordingTrigger) Trigger(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
	return r.err
}

func (r *recordingTrigger) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.names)
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (m *recordingMailer) Send(ctx context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

type fixture struct {
	svc     *Service
	repo    store.Repository
	stats   *cache.RedisStats
	trigger *recordingTrigger
	mail    *recordingMailer
	ids     int
}

// newFixture deals the unshuffled deck, optionally rearranged by arrange.
func newFixture(t *testing.T, arrange func(core.DeckState)) *fixture {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	msgs, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat: %v", err)
	}
	f := &fixture{
		repo:    store.NewMemoryRepository(),
		stats:   cache.NewRedisStats(rdb, "", 0),
		trigger: &recordingTrigger{},
		mail:    &recordingMailer{},
	}
	fixed := time.Date(2024, 3, 9, 15, 4, 5, 0, time.UTC)
	f.svc, err = NewService(f.repo, msgs, Config{},
		WithStats(f.stats),
		WithTrigger(f.trigger),
		WithMailer(f.mail),
		WithClock(func() time.Time { return fixed }),
		WithDealer(func() core.DeckState {
			d := core.NewDeck()
			if arrange != nil {
				arrange(d)
			}
			return d
		}),
		WithIDGenerator(func() string {
			f.ids++
			return "game-" + strconv.Itoa(f.ids)
		}),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return f
}

func (f *fixture) user(t *testing.T, name, email string) {
	t.Helper()
	if _, err := f.svc.CreateUser(context.Background(), name, email); err != nil {
		t.Fatalf("CreateUser(%s): %v", name, err)
	}
}

func (f *fixture) game(t *testing.T, user string) string {
	t.Helper()
	form, err := f.svc.NewGame(context.Background(), user)
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	return form.URLSafeKey
}

func (f *fixture) move(t *testing.T, key string, a, b int) *concentrationdto.GameForm {
	t.Helper()
	form, err := f.svc.MakeMove(context.Background(), key, strconv.Itoa(a), strconv.Itoa(b))
	if err != nil {
		t.Fatalf("MakeMove(%d,%d): %v", a, b, err)
	}
	return form
}

func kindOf(err error) concentrationdto.ErrorKind {
	var de concentrationdto.DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

func swap(i, j int) func(core.DeckState) {
	return func(d core.DeckState) { d[i], d[j] = d[j], d[i] }
}

func TestCreateUser(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	msg, err := f.svc.CreateUser(ctx, "Alice", "alice@example.com")
	if err != nil || msg.Message != "User Alice created!" {
		t.Fatalf("CreateUser = %+v, %v", msg, err)
	}
	_, err = f.svc.CreateUser(ctx, "Alice", "")
	if kindOf(err) != concentrationdto.KindConflict || err.Error() != "A User with that name already exists!" {
		t.Fatalf("duplicate err = %v", err)
	}
	if _, err := f.svc.CreateUser(ctx, "  ", ""); kindOf(err) != concentrationdto.KindInvalidInput || err.Error() != "A user name is required!" {
		t.Fatalf("blank name err = %v", err)
	}
	ranks, _ := f.svc.ListUserRankings(ctx, 0)
	if len(ranks.Items) != 1 || ranks.Items[0].Wins != 0 || ranks.Items[0].Losses != 0 {
		t.Fatalf("record not created: %+v", ranks)
	}
}

func TestNewGameUnknownUser(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.NewGame(context.Background(), "nobody")
	if kindOf(err) != concentrationdto.KindNotFound {
		t.Fatalf("err = %v", err)
	}
}

func TestNewGameTriggersRecompute(t *testing.T) {
	f := newFixture(t, nil)
	f.user(t, "Alice", "")
	form, err := f.svc.NewGame(context.Background(), "Alice")
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	if form.Message != "Good luck playing Concentration!" || form.UserName != "Alice" || form.GameOver {
		t.Fatalf("form = %+v", form)
	}
	if f.trigger.count() != 1 || f.trigger.names[0] != tasks.RecomputeAverageMoves {
		t.Fatalf("trigger calls = %v", f.trigger.names)
	}
}

func TestTriggerFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture(t, nil)
	f.trigger.err = errors.New("redis down")
	f.user(t, "Alice", "")
	if _, err := f.svc.NewGame(context.Background(), "Alice"); err != nil {
		t.Fatalf("NewGame: %v", err)
	}
}

func TestMoveMatchScenario(t *testing.T) {
	// slot 1 becomes _AD
	f := newFixture(t, swap(1, 13))
	f.user(t, "Alice", "")
	key := f.game(t, "Alice")

	form := f.move(t, key, 0, 1)
	if form.Message != "0:_AH ~ 1:_AD | Match" {
		t.Fatalf("message = %q", form.Message)
	}
	if form.SuccessfulAttempts != 1 || form.TotalAttempts != 1 || form.FailedAttempts != 0 {
		t.Fatalf("counters = %+v", form)
	}
	g, _ := f.repo.LoadGame(context.Background(), key)
	if !g.Deck[0].Matched() || !g.Deck[1].Matched() {
		t.Fatalf("slots not flipped")
	}

	form = f.move(t, key, 0, 2)
	if form.Message != "First choice has already been selected!" || form.TotalAttempts != 1 {
		t.Fatalf("matched slot form = %+v", form)
	}
	form = f.move(t, key, 2, 1)
	if form.Message != "Second choice has already been selected!" {
		t.Fatalf("matched second = %q", form.Message)
	}
}

func TestMoveNoMatchScenario(t *testing.T) {
	f := newFixture(t, nil)
	f.user(t, "Alice", "")
	key := f.game(t, "Alice")

	form := f.move(t, key, 0, 1)
	if form.Message != "0:_AH ~ 1:_2H | No_Match" {
		t.Fatalf("message = %q", form.Message)
	}
	if form.FailedAttempts != 1 || form.SuccessfulAttempts != 0 || form.TotalAttempts != 1 {
		t.Fatalf("counters = %+v", form)
	}
	g, _ := f.repo.LoadGame(context.Background(), key)
	if g.Deck[0].Matched() || g.Deck[1].Matched() {
		t.Fatalf("slots flipped on a miss")
	}
}

func TestMoveValidationMessages(t *testing.T) {
	f := newFixture(t, nil)
	f.user(t, "Alice", "")
	key := f.game(t, "Alice")
	ctx := context.Background()

	cases := []struct {
		first, second string
		want          string
	}{
		{"5", "5", "First choice and second choice cannot be the same!"},
		{"abc", "1", "You have entered invalid choices, choices can only be numbers in range of 0 - 51!"},
		{"1", "", "You have entered invalid choices, choices can only be numbers in range of 0 - 51!"},
		{"52", "1", "First choice is not in range of 0-51!"},
		{"1", "-1", "Second choice is not in range of 0-51!"},
	}
	for _, tc := range cases {
		for i := 0; i < 2; i++ {
			form, err := f.svc.MakeMove(ctx, key, tc.first, tc.second)
			if err != nil {
				t.Fatalf("(%q,%q): %v", tc.first, tc.second, err)
			}
			if form.Message != tc.want {
				t.Errorf("(%q,%q) = %q, want %q", tc.first, tc.second, form.Message, tc.want)
			}
			if form.TotalAttempts != 0 || form.GameOver {
				t.Fatalf("(%q,%q) mutated the game: %+v", tc.first, tc.second, form)
			}
		}
	}
	hist, _ := f.svc.GetMoveHistory(ctx, key)
	if hist.Message != "" {
		t.Fatalf("history after rejected moves = %q", hist.Message)
	}
}

func TestMoveUnknownGame(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.MakeMove(context.Background(), "missing", "0", "1")
	if kindOf(err) != concentrationdto.KindNotFound || err.Error() != "Game not found!" {
		t.Fatalf("err = %v", err)
	}
}

func playToWin(t *testing.T, f *fixture, key string) *concentrationdto.GameForm {
	t.Helper()
	var form *concentrationdto.GameForm
	for i := 0; i < 13; i++ {
		form = f.move(t, key, i, i+13)
	}
	for i := 26; i < 39; i++ {
		form = f.move(t, key, i, i+13)
	}
	return form
}

func TestWinBoundary(t *testing.T) {
	f := newFixture(t, nil)
	f.user(t, "Alice", "")
	key := f.game(t, "Alice")
	ctx := context.Background()

	form := playToWin(t, f, key)
	if form.Message != "You win!" || !form.GameOver || form.SuccessfulAttempts != core.PairCount || form.TotalAttempts != core.PairCount {
		t.Fatalf("final form = %+v", form)
	}

	scores, _ := f.svc.ListUserScores(ctx, "Alice")
	if len(scores.Items) != 1 || !scores.Items[0].Won || scores.Items[0].Date != "2024-03-09" {
		t.Fatalf("scores = %+v", scores)
	}
	ranks, _ := f.svc.ListUserRankings(ctx, 10)
	if ranks.Items[0].Wins != 1 || ranks.Items[0].Losses != 0 {
		t.Fatalf("record = %+v", ranks.Items[0])
	}
	if f.trigger.count() != 2 {
		t.Fatalf("trigger calls = %d", f.trigger.count())
	}

	again := f.move(t, key, 0, 1)
	if again.Message != "This game is already over!" || again.TotalAttempts != core.PairCount {
		t.Fatalf("move after win = %+v", again)
	}
	if _, err := f.svc.CancelGame(ctx, key); kindOf(err) != concentrationdto.KindInvalidState {
		t.Fatalf("cancel after win err = %v", err)
	}
	if scores, _ := f.svc.ListScores(ctx); len(scores.Items) != 1 {
		t.Fatalf("extra scores written: %+v", scores)
	}
	top, _ := f.svc.ListTopScores(ctx, 0)
	if len(top.Items) != 1 || top.Items[0].TotalAttempts != core.PairCount {
		t.Fatalf("top = %+v", top)
	}
}

func TestCancelGame(t *testing.T) {
	f := newFixture(t, nil)
	f.user(t, "Alice", "")
	key := f.game(t, "Alice")
	ctx := context.Background()

	f.move(t, key, 0, 1)
	form, err := f.svc.CancelGame(ctx, key)
	if err != nil {
		t.Fatalf("CancelGame: %v", err)
	}
	if form.Message != "Game was successfully cancelled!" || !form.GameOver {
		t.Fatalf("form = %+v", form)
	}
	_, err = f.svc.CancelGame(ctx, key)
	if kindOf(err) != concentrationdto.KindInvalidState {
		t.Fatalf("second cancel err = %v", err)
	}
	ranks, _ := f.svc.ListUserRankings(ctx, 0)
	if ranks.Items[0].Losses != 1 || ranks.Items[0].Wins != 0 {
		t.Fatalf("record = %+v", ranks.Items[0])
	}
	scores, _ := f.svc.ListScores(ctx)
	if len(scores.Items) != 1 || scores.Items[0].Won || scores.Items[0].TotalAttempts != 1 {
		t.Fatalf("scores = %+v", scores)
	}
	if _, err := f.svc.CancelGame(ctx, "missing"); kindOf(err) != concentrationdto.KindNotFound {
		t.Fatalf("cancel missing err = %v", err)
	}
	got, _ := f.svc.GetGame(ctx, key)
	if got.Message != "This game is already over!" {
		t.Fatalf("GetGame on over game = %q", got.Message)
	}
}

func TestListUserGamesActiveOnly(t *testing.T) {
	f := newFixture(t, nil)
	f.user(t, "Alice", "")
	ctx := context.Background()
	first := f.game(t, "Alice")
	second := f.game(t, "Alice")
	if _, err := f.svc.CancelGame(ctx, first); err != nil {
		t.Fatalf("CancelGame: %v", err)
	}
	games, err := f.svc.ListUserGames(ctx, "Alice")
	if err != nil {
		t.Fatalf("ListUserGames: %v", err)
	}
	if len(games.Items) != 1 || games.Items[0].URLSafeKey != second {
		t.Fatalf("games = %+v", games)
	}
	if _, err := f.svc.ListUserGames(ctx, "Bob"); kindOf(err) != concentrationdto.KindNotFound {
		t.Fatalf("unknown user err = %v", err)
	}
}

func TestMoveHistory(t *testing.T) {
	f := newFixture(t, nil)
	f.user(t, "Alice", "")
	key := f.game(t, "Alice")
	f.move(t, key, 0, 1)
	f.move(t, key, 0, 13)

	form, err := f.svc.GetMoveHistory(context.Background(), key)
	if err != nil {
		t.Fatalf("GetMoveHistory: %v", err)
	}
	want := "[0]0:_AH~1:_2H|No_Match [1]0:_AH~13:_AD|Match"
	if form.Message != want {
		t.Fatalf("history = %q, want %q", form.Message, want)
	}
}

func finishWithTotal(t *testing.T, f *fixture, total int) {
	t.Helper()
	key := f.game(t, "Alice")
	for i := 0; i < total; i++ {
		f.move(t, key, 0, 1)
	}
	if _, err := f.svc.CancelGame(context.Background(), key); err != nil {
		t.Fatalf("CancelGame: %v", err)
	}
}

func TestRecomputeAverageMoves(t *testing.T) {
	f := newFixture(t, nil)
	f.user(t, "Alice", "")
	ctx := context.Background()

	if err := f.svc.RecomputeAverageMoves(ctx); err != nil {
		t.Fatalf("Recompute with no games: %v", err)
	}
	if got := f.svc.GetAverageMoves(ctx); got.Message != "" {
		t.Fatalf("average before games = %q", got.Message)
	}

	for _, total := range []int{30, 40, 50} {
		finishWithTotal(t, f, total)
	}
	f.game(t, "Alice") // active games are ignored
	if err := f.svc.RecomputeAverageMoves(ctx); err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if got := f.svc.GetAverageMoves(ctx); got.Message != "The average amount of moves per game is 40.00" {
		t.Fatalf("average = %q", got.Message)
	}
}

func TestRecomputeKeepsPriorValueWithoutFinishedGames(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if err := f.stats.Set(ctx, cache.AverageMovesKey, "prior"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := f.svc.RecomputeAverageMoves(ctx); err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if got := f.svc.GetAverageMoves(ctx); got.Message != "prior" {
		t.Fatalf("average = %q", got.Message)
	}
}

func TestSendReminders(t *testing.T) {
	f := newFixture(t, nil)
	f.user(t, "Alice", "alice@example.com")
	f.user(t, "Bob", "bob@example.com")
	f.user(t, "Carol", "")
	f.game(t, "Alice")

	sent, err := f.svc.SendReminders(context.Background())
	if err != nil || sent != 2 {
		t.Fatalf("SendReminders = %d, %v", sent, err)
	}
	bodies := map[string]string{}
	for _, m := range f.mail.sent {
		if m.Subject != "This is a reminder!" || m.From != defaultMailFrom {
			t.Fatalf("message = %+v", m)
		}
		bodies[m.To] = m.Body
	}
	if want := "Hello Alice, you still have some active incomplete games, why not give the Concentration another try!"; bodies["alice@example.com"] != want {
		t.Fatalf("alice body = %q", bodies["alice@example.com"])
	}
	if want := "Hello Bob, try out Concentration!"; bodies["bob@example.com"] != want {
		t.Fatalf("bob body = %q", bodies["bob@example.com"])
	}
}

func TestRenderBoard(t *testing.T) {
	f := newFixture(t, nil)
	f.user(t, "Alice", "")
	key := f.game(t, "Alice")
	f.move(t, key, 0, 1)

	png, err := f.svc.RenderBoard(context.Background(), key)
	if err != nil {
		t.Fatalf("RenderBoard: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatalf("not a png")
	}
	if _, err := f.svc.RenderBoard(context.Background(), "missing"); kindOf(err) != concentrationdto.KindNotFound {
		t.Fatalf("missing game err = %v", err)
	}
}

func TestConcurrentMovesSerialize(t *testing.T) {
	f := newFixture(t, nil)
	f.user(t, "Alice", "")
	key := f.game(t, "Alice")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.MakeMove(context.Background(), key, "0", "1"); err != nil {
				t.Errorf("MakeMove: %v", err)
			}
		}()
	}
	wg.Wait()
	form, _ := f.svc.GetGame(context.Background(), key)
	if form.TotalAttempts != 10 || form.FailedAttempts != 10 {
		t.Fatalf("lost updates: %+v", form)
	}
	hist, _ := f.svc.GetMoveHistory(context.Background(), key)
	for i := 0; i < 10; i++ {
		if !bytes.Contains([]byte(hist.Message), []byte(fmt.Sprintf("[%d]", i))) {
			t.Fatalf("history missing attempt %d: %q", i, hist.Message)
		}
	}
}
