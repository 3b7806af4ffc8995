package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/ramonehamilton/GCG-Companion/internal/gcg/models"
	"github.com/ramonehamilton/GCG-Companion/internal/logger"
	"github.com/ramonehamilton/GCG-Companion/internal/metrics"
	"github.com/ramonehamilton/GCG-Companion/internal/provider"
	"github.com/ramonehamilton/GCG-Companion/internal/stats"
)

// DefaultStatusRecall is how long the status message stays visible.
const DefaultStatusRecall = 60 * time.Second

var tracer = otel.Tracer("github.com/ramonehamilton/GCG-Companion/internal/report")

// Options configures a Service.
type Options struct {
	Provider  Provider
	Snapshots SnapshotStore
	Renderer  Renderer
	Replies   ReplySink
	Tips      *Tips
	Metrics   *metrics.ReportMetrics
	Logger    *logger.Logger

	// ReplayLimit caps the recent matches shown; <= 0 shows all.
	ReplayLimit  int
	StatusRecall time.Duration

	Now func() time.Time
}

// Service generates reports.
type Service struct {
	provider     Provider
	snapshots    SnapshotStore
	deltas       *stats.DeltaEngine
	renderer     Renderer
	replies      ReplySink
	tips         *Tips
	metrics      *metrics.ReportMetrics
	log          *logger.Logger
	replayLimit  int
	statusRecall time.Duration
	now          func() time.Time
}

// NewService creates a report service. Provider, Snapshots and Replies are
// required.
func NewService(opts Options) (*Service, error) {
	if opts.Provider == nil {
		return nil, errors.New("provider required")
	}
	if opts.Snapshots == nil {
		return nil, errors.New("snapshot store required")
	}
	if opts.Replies == nil {
		return nil, errors.New("reply sink required")
	}
	if opts.Tips == nil {
		opts.Tips = NewTips(nil)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewReportMetrics()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.StatusRecall <= 0 {
		opts.StatusRecall = DefaultStatusRecall
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		provider:     opts.Provider,
		snapshots:    opts.Snapshots,
		deltas:       stats.NewDeltaEngine(opts.Snapshots),
		renderer:     opts.Renderer,
		replies:      opts.Replies,
		tips:         opts.Tips,
		metrics:      opts.Metrics,
		log:          opts.Logger.With("component", "report"),
		replayLimit:  opts.ReplayLimit,
		statusRecall: opts.StatusRecall,
		now:          opts.Now,
	}, nil
}

// Tips returns the service's tip list.
func (s *Service) Tips() *Tips { return s.tips }

// Metrics returns the service's metrics.
func (s *Service) Metrics() *metrics.ReportMetrics { return s.metrics }

type fetched struct {
	info   models.BasicInfo
	cards  []models.RawCardRecord
	action []models.RawActionCardRecord
}

// GetReport runs one report for user.
//
// Missing or malformed provider data, a player without cards and an empty
// card list are reported through Report.Status and leave the stored
// snapshots untouched. A card count regression is returned as a
// *stats.DataRegressionError after the scalar totals were written; the card
// snapshot is kept so the next query compares against the last good data.
func (s *Service) GetReport(ctx context.Context, user models.UserContext) (*Report, error) {
	ctx, span := tracer.Start(ctx, "report.GetReport")
	defer span.End()
	span.SetAttributes(attribute.String("gcg.uid", user.UID))

	start := s.now()
	defer func() { s.metrics.EndToEndLatency.Record(s.now().Sub(start)) }()
	s.metrics.ReportsStarted.Add(1)

	log := s.log.With("uid", user.UID)

	rep, err := s.getReport(ctx, user, log)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if stats.IsDataRegression(err) {
			s.metrics.Regressions.Add(1)
		} else {
			s.metrics.Failures.Add(1)
		}
		return nil, err
	}

	span.SetAttributes(
		attribute.String("gcg.status", string(rep.Status)),
		attribute.String("gcg.mode", string(rep.Mode)),
	)
	switch rep.Status {
	case StatusUnavailable:
		s.metrics.Unavailable.Add(1)
	case StatusNoCards:
		s.metrics.NoCards.Add(1)
	case StatusEmptyCardList:
		s.metrics.EmptyCardLists.Add(1)
	case StatusOK:
		if rep.Mode == ModeDelta {
			s.metrics.DeltaReports.Add(1)
		} else {
			s.metrics.FullReports.Add(1)
		}
	}
	return rep, nil
}

func (s *Service) getReport(ctx context.Context, user models.UserContext, log *logger.Logger) (*Report, error) {
	rep := &Report{
		ID:          uuid.NewString(),
		UID:         user.UID,
		GeneratedAt: s.now(),
	}

	s.reply(ctx, log, Message{
		UID:    user.UID,
		Text:   statusText(s.tips.Random()),
		Quote:  true,
		Recall: s.statusRecall,
	})

	data, ok, err := s.fetchAll(ctx, user, log)
	if err != nil {
		return nil, err
	}
	if !ok {
		rep.Status = StatusUnavailable
		return rep, nil
	}

	if data.info.AvatarCardNumGained == 0 {
		s.reply(ctx, log, Message{UID: user.UID, Text: msgNoCards, Quote: true, Recall: s.statusRecall})
		rep.Status = StatusNoCards
		return rep, nil
	}
	if len(data.cards) == 0 {
		s.reply(ctx, log, Message{UID: user.UID, Text: msgEmptyCardList, Quote: true})
		rep.Status = StatusEmptyCardList
		return rep, nil
	}

	var (
		character stats.CharacterResult
		action    []models.ActionCardStat
		replays   []models.MatchSummary
		previous  models.ScalarTotals
		hasPrev   bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		character = stats.NormalizeCharacterCards(data.cards)
		return nil
	})
	g.Go(func() error {
		action = stats.NormalizeActionCards(data.action)
		return nil
	})
	g.Go(func() error {
		replays = stats.ExtractReplays(data.info.Replays, s.replayLimit, log)
		return nil
	})
	g.Go(func() error {
		var err error
		previous, hasPrev, err = s.snapshots.ScalarTotals(gctx, user.UID)
		if err != nil {
			return fmt.Errorf("read scalar totals: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	winRate := stats.WinRate(character.Totals)
	log.Debug("normalized character cards",
		"total_round", character.Totals.TotalRound,
		"total_win_round", character.Totals.TotalWinRound,
		"cards", len(character.Cards),
	)

	rep.Totals = character.Totals
	rep.WinRate = winRate
	rep.Replays = replays
	rep.Streak = stats.CalculateStreaks(replays)
	rep.ScalarDelta = models.ScalarDelta{
		WinRateChange:    winRate - previous.WinRate,
		TotalRoundChange: character.Totals.TotalRound - previous.TotalRound,
		HasBaseline:      hasPrev,
	}

	delta, diffErr := s.deltas.Compute(ctx, user.UID, character.Cards)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Scalars are written whatever the diff outcome.
	if err := s.snapshots.SetScalarTotals(ctx, user.UID, models.ScalarTotals{
		WinRate:    winRate,
		TotalRound: character.Totals.TotalRound,
	}); err != nil {
		return nil, errors.Join(fmt.Errorf("write scalar totals: %w", err), diffErr)
	}
	if diffErr != nil && !stats.IsDataRegression(diffErr) {
		return nil, diffErr
	}

	var regression *stats.DataRegressionError
	if errors.As(diffErr, &regression) {
		log.Error("character card count regressed",
			"previous", regression.Previous,
			"current", regression.Current,
		)
		s.reply(ctx, log, Message{UID: user.UID, Text: msgAnomaly, Quote: true})
		return nil, diffErr
	}

	if err := s.snapshots.SetCardSnapshot(ctx, user.UID, character.Cards); err != nil {
		return nil, fmt.Errorf("write card snapshot: %w", err)
	}

	header := formatHeader(user.UID, data.info.Nickname, character.Totals, winRate,
		rep.ScalarDelta, rep.Streak, replays)
	rep.Status = StatusOK

	if len(delta.Changes) > 0 {
		rep.Mode = ModeDelta
		rep.Changes = delta.Changes
		rep.Text = header + "\n\n" + formatChanges(delta.Changes)
		s.reply(ctx, log, Message{UID: user.UID, Text: rep.Text, Quote: true})
		return rep, nil
	}

	rep.Mode = ModeFull
	rep.Text = header + "\n" + msgRendering
	s.reply(ctx, log, Message{UID: user.UID, Text: rep.Text, Quote: true})

	gcg := &GCGData{
		UID:                 user.UID,
		Level:               data.info.Level,
		Nickname:            data.info.Nickname,
		AvatarCardNumGained: data.info.AvatarCardNumGained,
		AvatarCardNumTotal:  data.info.AvatarCardNumTotal,
		ActionCardNumGained: data.info.ActionCardNumGained,
		ActionCardNumTotal:  data.info.ActionCardNumTotal,
		TotalRound:          character.Totals.TotalRound,
		TotalWinRound:       character.Totals.TotalWinRound,
		WinRate:             winRate,
		AvatarCardList:      character.Cards,
		ActionCardList:      action,
		Replays:             replays,
	}
	rep.Avatar = newRenderPayload(user.UID, RenderTypeAvatar, gcg)
	rep.Action = newRenderPayload(user.UID, RenderTypeAction, gcg)
	return rep, nil
}

func newRenderPayload(uid, renderType string, data *GCGData) *RenderPayload {
	return &RenderPayload{
		UID:            uid,
		SaveID:         uid,
		RenderType:     renderType,
		Quality:        100,
		OmitBackground: true,
		GCGData:        data,
	}
}

// fetchAll fetches and decodes the three resources concurrently. ok is
// false when any of them is absent or malformed; err is only set when ctx
// ended.
func (s *Service) fetchAll(ctx context.Context, user models.UserContext, log *logger.Logger) (fetched, bool, error) {
	start := s.now()
	defer func() { s.metrics.FetchLatency.Record(s.now().Sub(start)) }()

	payloads := make([]json.RawMessage, len(provider.ResourceKinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range provider.ResourceKinds {
		g.Go(func() error {
			s.metrics.ProviderRequests.Add(1)
			data, err := s.provider.Fetch(gctx, kind, user)
			if err != nil {
				s.metrics.ProviderErrors.Add(1)
				return fmt.Errorf("fetch %s: %w", kind, err)
			}
			if data == nil {
				return fmt.Errorf("fetch %s: no data", kind)
			}
			payloads[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fetched{}, false, ctxErr
		}
		log.Warn("provider data unavailable", "error", err)
		return fetched{}, false, nil
	}

	var (
		out  fetched
		errs []string
		err  error
	)
	if out.info, err = provider.DecodeBasicInfo(payloads[0]); err != nil {
		errs = append(errs, err.Error())
	}
	if out.cards, err = provider.DecodeCharacterCards(payloads[1]); err != nil {
		errs = append(errs, err.Error())
	}
	if out.action, err = provider.DecodeActionCards(payloads[2]); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		log.Warn("provider data malformed", "errors", strings.Join(errs, "; "))
		return fetched{}, false, nil
	}
	return out, true, nil
}

func (s *Service) reply(ctx context.Context, log *logger.Logger, msg Message) {
	if err := s.replies.Send(ctx, msg); err != nil {
		log.Warn("failed to send reply", "error", err)
	}
}

// RenderAll renders both images of a full report. It returns nil when the
// report is not a full report, no renderer is configured or either image
// came back empty.
func (s *Service) RenderAll(ctx context.Context, rep *Report) ([][]byte, error) {
	if rep == nil || rep.Mode != ModeFull || s.renderer == nil || rep.Avatar == nil || rep.Action == nil {
		return nil, nil
	}

	start := s.now()
	defer func() { s.metrics.RenderLatency.Record(s.now().Sub(start)) }()

	images := make([][]byte, 2)
	g, gctx := errgroup.WithContext(ctx)
	for i, payload := range []*RenderPayload{rep.Avatar, rep.Action} {
		g.Go(func() error {
			img, err := s.renderer.Render(gctx, TemplateName, *payload)
			if err != nil {
				return fmt.Errorf("render %s: %w", payload.RenderType, err)
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if images[0] == nil || images[1] == nil {
		return nil, nil
	}
	return images, nil
}
