package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/GCG-Companion/internal/gcg/models"
	"github.com/ramonehamilton/GCG-Companion/internal/provider"
	"github.com/ramonehamilton/GCG-Companion/internal/snapshot"
	"github.com/ramonehamilton/GCG-Companion/internal/stats"
)

type fakeProvider struct {
	mu       sync.Mutex
	payloads map[provider.ResourceKind]string
	errs     map[provider.ResourceKind]error
}

func (p *fakeProvider) Fetch(_ context.Context, kind provider.ResourceKind, _ models.UserContext) (json.RawMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.errs[kind]; err != nil {
		return nil, err
	}
	body, ok := p.payloads[kind]
	if !ok {
		return nil, nil
	}
	return json.RawMessage(body), nil
}

func (p *fakeProvider) set(kind provider.ResourceKind, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads[kind] = body
}

type recordingSink struct {
	mu       sync.Mutex
	messages []Message
	err      error
}

func (s *recordingSink) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return s.err
}

func (s *recordingSink) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.messages))
	for _, m := range s.messages {
		out = append(out, m.Text)
	}
	return out
}

type rawCard struct {
	id          int
	name        string
	proficiency int
	useCount    int
}

func cardList(cards ...rawCard) string {
	parts := make([]string, 0, len(cards))
	for _, c := range cards {
		parts = append(parts, fmt.Sprintf(`{"id":%d,"name":%q,"proficiency":%d,"use_count":%d,"num":1}`,
			c.id, c.name, c.proficiency, c.useCount))
	}
	return `{"card_list":[` + strings.Join(parts, ",") + `]}`
}

const testBasicInfo = `{
	"level": 10,
	"nickname": "Traveler",
	"avatar_card_num_gained": 3,
	"avatar_card_num_total": 60,
	"action_card_num_gained": 2,
	"action_card_num_total": 200,
	"replays": [
		{"game_id":"g2","match_type":"Casual","is_win":true,"self":{"is_overflow":false},"opposite":{"name":"Bob","is_overflow":false}},
		{"game_id":"g1","match_type":"Ranked","is_win":false,"self":{"is_overflow":true},"opposite":{"name":"Eve","is_overflow":false}}
	]
}`

const testActionCards = `{"card_list":[
	{"id":3101,"name":"Paimon","card_type":"CardTypeAssist","use_count":3,"num":2},
	{"id":3102,"name":"Sweet Madame","card_type":"CardTypeEvent","use_count":1,"num":2},
	{"id":3103,"name":"Unused","card_type":"CardTypeModify","use_count":0,"num":1}
]}`

type harness struct {
	provider *fakeProvider
	sink     *recordingSink
	cache    *snapshot.MemoryCache
	store    *snapshot.Store
	service  *Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		provider: &fakeProvider{
			payloads: map[provider.ResourceKind]string{
				provider.ResourceBasicInfo:         testBasicInfo,
				provider.ResourceCharacterCardList: cardList(rawCard{1, "Diluc", 5, 10}, rawCard{2, "Ganyu", 0, 0}),
				provider.ResourceActionCardList:    testActionCards,
			},
			errs: map[provider.ResourceKind]error{},
		},
		sink:  &recordingSink{},
		cache: snapshot.NewMemoryCache(),
	}
	h.store = snapshot.NewStore(h.cache)

	svc, err := NewService(Options{
		Provider:  h.provider,
		Snapshots: h.store,
		Replies:   h.sink,
		Tips:      NewTips([]string{"tip"}),
	})
	require.NoError(t, err)
	h.service = svc
	return h
}

var testUser = models.UserContext{UID: "100000001", Server: "cn_gf01", Cookie: "ltoken=secret"}

func TestNewService_RequiresCollaborators(t *testing.T) {
	_, err := NewService(Options{})
	assert.Error(t, err)
	_, err = NewService(Options{Provider: &fakeProvider{}})
	assert.Error(t, err)
	_, err = NewService(Options{Provider: &fakeProvider{}, Snapshots: snapshot.NewStore(snapshot.NewMemoryCache())})
	assert.Error(t, err)
}

func TestGetReport_FirstQueryIsFull(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	rep, err := h.service.GetReport(ctx, testUser)
	require.NoError(t, err)

	assert.Equal(t, StatusOK, rep.Status)
	assert.Equal(t, ModeFull, rep.Mode)
	assert.NotEmpty(t, rep.ID)
	assert.Equal(t, models.AggregateTotals{TotalRound: 4, TotalWinRound: 2}, rep.Totals)
	assert.InDelta(t, 50.0, rep.WinRate, 1e-9)
	assert.False(t, rep.ScalarDelta.HasBaseline)
	assert.Equal(t, 4, rep.ScalarDelta.TotalRoundChange)
	assert.Empty(t, rep.Changes)
	assert.Len(t, rep.Replays, 2)
	assert.Equal(t, 1, rep.Streak.CurrentStreak)

	require.NotNil(t, rep.Avatar)
	require.NotNil(t, rep.Action)
	assert.Equal(t, RenderTypeAvatar, rep.Avatar.RenderType)
	assert.Equal(t, RenderTypeAction, rep.Action.RenderType)
	assert.Equal(t, 100, rep.Avatar.Quality)
	assert.True(t, rep.Action.OmitBackground)
	assert.Same(t, rep.Avatar.GCGData, rep.Action.GCGData)
	assert.Len(t, rep.Avatar.GCGData.AvatarCardList, 1)
	assert.Len(t, rep.Avatar.GCGData.ActionCardList, 2)

	texts := h.sink.texts()
	require.Len(t, texts, 2)
	assert.Equal(t, "Fetching data, please wait...\ntip", texts[0])
	assert.Contains(t, texts[1], "UID: 100000001, Nickname: Traveler")
	assert.Contains(t, texts[1], "Total rounds: 4, Win rate: 50.000%")
	assert.Contains(t, texts[1], "Casual Bob Win")
	assert.True(t, strings.HasSuffix(texts[1], msgRendering))

	totals, ok, err := h.store.ScalarTotals(ctx, testUser.UID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.ScalarTotals{WinRate: 50, TotalRound: 4}, totals)

	cards, ok, err := h.store.CardSnapshot(ctx, testUser.UID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, cards, 1)
}

func TestGetReport_ChangesProduceDelta(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.service.GetReport(ctx, testUser)
	require.NoError(t, err)

	h.provider.set(provider.ResourceCharacterCardList,
		cardList(rawCard{1, "Diluc", 7, 12}, rawCard{2, "Ganyu", 0, 0}, rawCard{3, "Keqing", 1, 1}))

	rep, err := h.service.GetReport(ctx, testUser)
	require.NoError(t, err)

	assert.Equal(t, ModeDelta, rep.Mode)
	assert.Nil(t, rep.Avatar)
	assert.Nil(t, rep.Action)
	require.Len(t, rep.Changes, 2)
	assert.Equal(t, "Diluc", rep.Changes[0].CardName)
	assert.True(t, rep.Changes[1].IsNew)

	assert.True(t, rep.ScalarDelta.HasBaseline)
	assert.Equal(t, 1, rep.ScalarDelta.TotalRoundChange)
	assert.InDelta(t, 10.0, rep.ScalarDelta.WinRateChange, 1e-9)

	assert.Contains(t, rep.Text, "Since last query: rounds +1, win rate +10.000%")
	assert.True(t, strings.HasSuffix(rep.Text, "Diluc: 2W 0L proficiency 7\n[New] Keqing: 1W 0L proficiency 1"), rep.Text)

	texts := h.sink.texts()
	assert.Equal(t, rep.Text, texts[len(texts)-1])

	cards, _, err := h.store.CardSnapshot(ctx, testUser.UID)
	require.NoError(t, err)
	assert.Len(t, cards, 2)
}

func TestGetReport_UnchangedIsFull(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.service.GetReport(ctx, testUser)
	require.NoError(t, err)

	rep, err := h.service.GetReport(ctx, testUser)
	require.NoError(t, err)

	assert.Equal(t, ModeFull, rep.Mode)
	assert.True(t, rep.ScalarDelta.HasBaseline)
	assert.Equal(t, 0, rep.ScalarDelta.TotalRoundChange)
	assert.Contains(t, rep.Text, "rounds +0, win rate +0.000%")
}

func TestGetReport_DataRegression(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	previous := []models.NormalizedCard{
		{CardID: 1, UseCount: 1}, {CardID: 2, UseCount: 1}, {CardID: 3, UseCount: 1},
		{CardID: 4, UseCount: 1}, {CardID: 5, UseCount: 1},
	}
	require.NoError(t, h.store.SetCardSnapshot(ctx, testUser.UID, previous))
	require.NoError(t, h.store.SetScalarTotals(ctx, testUser.UID, models.ScalarTotals{WinRate: 1, TotalRound: 99}))

	h.provider.set(provider.ResourceCharacterCardList,
		cardList(rawCard{1, "A", 1, 1}, rawCard{2, "B", 1, 1}, rawCard{3, "C", 1, 1}))

	rep, err := h.service.GetReport(ctx, testUser)
	assert.Nil(t, rep)
	require.Error(t, err)

	var regression *stats.DataRegressionError
	require.True(t, errors.As(err, &regression))
	assert.Equal(t, 5, regression.Previous)
	assert.Equal(t, 3, regression.Current)

	cards, _, err := h.store.CardSnapshot(ctx, testUser.UID)
	require.NoError(t, err)
	assert.Equal(t, previous, cards, "card snapshot is not overwritten")

	totals, _, err := h.store.ScalarTotals(ctx, testUser.UID)
	require.NoError(t, err)
	assert.Equal(t, models.ScalarTotals{WinRate: 100, TotalRound: 1}, totals,
		"scalar totals are written before the anomaly surfaces")

	texts := h.sink.texts()
	assert.Equal(t, msgAnomaly, texts[len(texts)-1])
	assert.Equal(t, uint64(1), h.service.Metrics().Regressions.Load())
}

func TestGetReport_SoftFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*fakeProvider)
		status Status
		reply  string
	}{
		{
			name:   "basic info absent",
			mutate: func(p *fakeProvider) { delete(p.payloads, provider.ResourceBasicInfo) },
			status: StatusUnavailable,
		},
		{
			name:   "action cards absent",
			mutate: func(p *fakeProvider) { delete(p.payloads, provider.ResourceActionCardList) },
			status: StatusUnavailable,
		},
		{
			name: "provider error",
			mutate: func(p *fakeProvider) {
				p.errs[provider.ResourceCharacterCardList] = &provider.APIError{Type: provider.ErrUnavailable, Message: "boom"}
			},
			status: StatusUnavailable,
		},
		{
			name:   "missing card list",
			mutate: func(p *fakeProvider) { p.payloads[provider.ResourceCharacterCardList] = `{}` },
			status: StatusUnavailable,
		},
		{
			name:   "undecodable basic info",
			mutate: func(p *fakeProvider) { p.payloads[provider.ResourceBasicInfo] = `"nope"` },
			status: StatusUnavailable,
		},
		{
			name: "no cards gained",
			mutate: func(p *fakeProvider) {
				p.payloads[provider.ResourceBasicInfo] = `{"nickname":"n","avatar_card_num_gained":0}`
			},
			status: StatusNoCards,
			reply:  msgNoCards,
		},
		{
			name:   "empty card list",
			mutate: func(p *fakeProvider) { p.payloads[provider.ResourceCharacterCardList] = `{"card_list":[]}` },
			status: StatusEmptyCardList,
			reply:  msgEmptyCardList,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.mutate(h.provider)

			rep, err := h.service.GetReport(context.Background(), testUser)
			require.NoError(t, err)
			assert.Equal(t, tt.status, rep.Status)
			assert.Empty(t, rep.Mode)
			assert.Equal(t, 0, h.cache.Len(), "no store mutation")

			texts := h.sink.texts()
			if tt.reply == "" {
				assert.Len(t, texts, 1, "only the status message is sent")
			} else {
				require.Len(t, texts, 2)
				assert.Equal(t, tt.reply, texts[1])
			}
		})
	}
}

// cancellingStore cancels the request while the card snapshot is read.
type cancellingStore struct {
	*snapshot.Store
	cancel context.CancelFunc
}

func (s cancellingStore) CardSnapshot(ctx context.Context, uid string) ([]models.NormalizedCard, bool, error) {
	s.cancel()
	return s.Store.CardSnapshot(context.WithoutCancel(ctx), uid)
}

func TestGetReport_CancelledBeforeWrites(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := NewService(Options{
		Provider:  h.provider,
		Snapshots: cancellingStore{Store: h.store, cancel: cancel},
		Replies:   h.sink,
	})
	require.NoError(t, err)

	_, err = svc.GetReport(ctx, testUser)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, h.cache.Len(), "nothing written after cancellation")
}

func TestGetReport_ReplaysNotAList(t *testing.T) {
	for _, replays := range []string{`{"oops":1}`, `{}`, `"none"`} {
		t.Run(replays, func(t *testing.T) {
			h := newHarness(t)
			h.provider.set(provider.ResourceBasicInfo,
				`{"level":1,"nickname":"T","avatar_card_num_gained":3,"replays":`+replays+`}`)
			ctx := context.Background()

			rep, err := h.service.GetReport(ctx, testUser)
			require.NoError(t, err)
			assert.Equal(t, StatusOK, rep.Status)
			assert.Equal(t, ModeFull, rep.Mode)
			assert.Empty(t, rep.Replays)

			totals, ok, err := h.store.ScalarTotals(ctx, testUser.UID)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, models.ScalarTotals{WinRate: 50, TotalRound: 4}, totals)
		})
	}
}

func TestGetReport_CorruptCardSnapshotIsNoBaseline(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.cache.Set(ctx, "gcg:avatarCardResult:"+testUser.UID, "{broken", time.Hour))

	rep, err := h.service.GetReport(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, rep.Status)
	assert.Equal(t, ModeFull, rep.Mode)

	cards, ok, err := h.store.CardSnapshot(ctx, testUser.UID)
	require.NoError(t, err)
	assert.True(t, ok, "the unreadable snapshot is replaced")
	assert.Len(t, cards, 1)

	_, ok, err = h.store.ScalarTotals(ctx, testUser.UID)
	require.NoError(t, err)
	assert.True(t, ok)
}

// unreadableCardStore fails every card snapshot read.
type unreadableCardStore struct {
	*snapshot.Store
	err error
}

func (s unreadableCardStore) CardSnapshot(context.Context, string) ([]models.NormalizedCard, bool, error) {
	return nil, false, s.err
}

func TestGetReport_CardSnapshotReadFailureKeepsScalars(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	boom := errors.New("connection reset")

	svc, err := NewService(Options{
		Provider:  h.provider,
		Snapshots: unreadableCardStore{Store: h.store, err: boom},
		Replies:   h.sink,
	})
	require.NoError(t, err)

	rep, err := svc.GetReport(ctx, testUser)
	assert.Nil(t, rep)
	require.ErrorIs(t, err, boom)
	assert.False(t, stats.IsDataRegression(err))

	totals, ok, err := h.store.ScalarTotals(ctx, testUser.UID)
	require.NoError(t, err)
	assert.True(t, ok, "scalar totals are written before the failure surfaces")
	assert.Equal(t, models.ScalarTotals{WinRate: 50, TotalRound: 4}, totals)

	_, ok, err = h.store.CardSnapshot(ctx, testUser.UID)
	require.NoError(t, err)
	assert.False(t, ok, "card snapshot is not written")
}

func TestGetReport_ReplyFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	h.sink.err = errors.New("socket closed")

	rep, err := h.service.GetReport(context.Background(), testUser)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, rep.Status)
}

func TestGetReport_ReplayLimit(t *testing.T) {
	h := newHarness(t)
	svc, err := NewService(Options{
		Provider:    h.provider,
		Snapshots:   h.store,
		Replies:     h.sink,
		ReplayLimit: 1,
		Now:         func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)

	rep, err := svc.GetReport(context.Background(), testUser)
	require.NoError(t, err)
	assert.Len(t, rep.Replays, 1)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), rep.GeneratedAt)
}

func TestGetReport_Metrics(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.service.GetReport(ctx, testUser)
	require.NoError(t, err)
	h.provider.set(provider.ResourceCharacterCardList,
		cardList(rawCard{1, "Diluc", 6, 11}, rawCard{2, "Ganyu", 0, 0}))
	_, err = h.service.GetReport(ctx, testUser)
	require.NoError(t, err)

	st := h.service.Metrics().GetStats()
	assert.Equal(t, uint64(2), st.ReportsStarted)
	assert.Equal(t, uint64(1), st.FullReports)
	assert.Equal(t, uint64(1), st.DeltaReports)
	assert.Equal(t, uint64(6), st.ProviderRequests)
	assert.Equal(t, 2, st.EndToEndLatency.Count)
}

type fakeRenderer struct {
	mu       sync.Mutex
	payloads []RenderPayload
	absent   string
}

func (r *fakeRenderer) Render(_ context.Context, template string, payload RenderPayload) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, payload)
	if payload.RenderType == r.absent {
		return nil, nil
	}
	return []byte(template + ":" + payload.RenderType), nil
}

func TestRenderAll(t *testing.T) {
	h := newHarness(t)
	renderer := &fakeRenderer{}
	svc, err := NewService(Options{
		Provider:  h.provider,
		Snapshots: h.store,
		Replies:   h.sink,
		Renderer:  renderer,
	})
	require.NoError(t, err)

	rep, err := svc.GetReport(context.Background(), testUser)
	require.NoError(t, err)
	require.Equal(t, ModeFull, rep.Mode)

	images, err := svc.RenderAll(context.Background(), rep)
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, "gcg/index:avatar", string(images[0]))
	assert.Equal(t, "gcg/index:action", string(images[1]))

	renderer.absent = RenderTypeAction
	images, err = svc.RenderAll(context.Background(), rep)
	require.NoError(t, err)
	assert.Nil(t, images, "a missing image yields no images")

	images, err = svc.RenderAll(context.Background(), &Report{Mode: ModeDelta})
	require.NoError(t, err)
	assert.Nil(t, images)
}
