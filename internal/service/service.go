package service

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"jackpotwatch/internal/alerting"
	"jackpotwatch/internal/config"
	"jackpotwatch/internal/fetcher"
	"jackpotwatch/internal/parser"
	"jackpotwatch/internal/report"
	"jackpotwatch/internal/state"
)

// Service runs one pass of the jackpot check pipeline.
type Service struct {
	settings config.Settings
	store    state.Store
	out      io.Writer
	logger   zerolog.Logger

	loadConfig  func(path string) (*config.Config, error)
	newSource   func(cfg *config.Config) fetcher.PrizeSource
	newNotifier func(cfg *config.Config) alerting.Notifier
	now         func() time.Time
}

// New constructs the pipeline. Human-readable run lines are written to out.
func New(settings config.Settings, store state.Store, out io.Writer, logger zerolog.Logger) *Service {
	s := &Service{
		settings:   settings,
		store:      store,
		out:        out,
		logger:     logger.With().Str("component", "service").Logger(),
		loadConfig: config.Load,
		now:        func() time.Time { return time.Now().UTC() },
	}
	s.newSource = func(cfg *config.Config) fetcher.PrizeSource {
		return fetcher.NewToto(fetcher.TotoOptions{
			URL:       cfg.PrizeSource.URL,
			Timeout:   cfg.PrizeSource.Timeout,
			UserAgent: cfg.PrizeSource.UserAgent,
		}, logger)
	}
	s.newNotifier = func(cfg *config.Config) alerting.Notifier {
		return alerting.NewTelegramNotifier(
			settings.TelegramBotToken,
			settings.TelegramChatID,
			cfg.Alert.Telegram.APIBase,
			cfg.Alert.Telegram.Timeout,
			logger,
		)
	}
	return s
}

// WithSource replaces the results page fetcher built from the config document.
func (s *Service) WithSource(source fetcher.PrizeSource) *Service {
	s.newSource = func(*config.Config) fetcher.PrizeSource { return source }
	return s
}

// Run executes the pipeline, recording every stage in rep. A non-nil error
// means the run failed and the process should exit non-zero.
func (s *Service) Run(ctx context.Context, rep *report.Report) error {
	rep.SetRowCount(report.RowSymbolsMonitored, 1)

	cfg, err := s.loadStage(rep)
	if err != nil {
		return err
	}

	snapshot, err := s.fetchStage(ctx, cfg, rep)
	if err != nil {
		return err
	}

	s.evaluateFreshness(rep, snapshot.DrawDateTimeText)

	threshold := decimal.NewFromFloat(cfg.Threshold.Amount)
	triggered := snapshot.JackpotEstimate.GreaterThan(threshold)
	s.evaluateRule(rep, snapshot, threshold, triggered)

	if !triggered {
		s.skipBelowThreshold(rep, snapshot, threshold)
		return nil
	}

	duplicate, err := s.dedupeStage(ctx, rep, snapshot)
	if err != nil || duplicate {
		return err
	}

	message, err := s.renderStage(rep, cfg, snapshot, threshold)
	if err != nil {
		return err
	}

	if s.settings.DryRun() {
		fmt.Fprintln(s.out, "DRY_RUN enabled; Telegram message not sent.")
		fmt.Fprintln(s.out, message)
		rep.CheckMetric(report.CheckTelegramSendSuccessRate, report.StatusOK, "DRY_RUN enabled; Telegram request intentionally skipped.", 1)
		rep.Breakpoint(report.BreakpointTelegram, report.StatusOK, "DRY_RUN enabled; Telegram send skipped.")
		return s.persistStage(ctx, rep, snapshot, "State updated after DRY_RUN signal.")
	}

	if err := s.sendStage(ctx, rep, cfg, message); err != nil {
		return err
	}
	return s.persistStage(ctx, rep, snapshot, "State persisted with latest alerted draw id.")
}

func (s *Service) loadStage(rep *report.Report) (*config.Config, error) {
	path := s.settings.ConfigPath
	cfg, err := s.loadConfig(path)
	if err != nil {
		detail := fmt.Sprintf("Config load/validation failed: %v", err)
		rep.CheckMetric(report.CheckConfigValid, report.StatusFail, detail, 0)
		rep.Breakpoint(report.BreakpointConfig, report.StatusFail, detail)
		return nil, err
	}

	rep.CheckMetric(report.CheckConfigValid, report.StatusOK, fmt.Sprintf("Config loaded and validated from %s.", path), 1)
	rep.Breakpoint(report.BreakpointConfig, report.StatusOK, fmt.Sprintf("Config loaded from %s.", path))
	s.logger.Debug().Str("path", path).Float64("threshold", cfg.Threshold.Amount).Msg("config loaded")
	return cfg, nil
}

func (s *Service) fetchStage(ctx context.Context, cfg *config.Config, rep *report.Report) (parser.DrawSnapshot, error) {
	snapshot, err := s.newSource(cfg).FetchNextDraw(ctx)
	if err != nil {
		detail := fmt.Sprintf("Market price fetch failed: %v", err)
		rep.SetRowCount(report.RowPricesFetched, 0)
		rep.CheckMetric(report.CheckPriceFetchSuccessRate, report.StatusFail, detail, 0)
		rep.Breakpoint(report.BreakpointFetch, report.StatusFail, detail)
		return parser.DrawSnapshot{}, err
	}

	rep.SetRowCount(report.RowPricesFetched, 1)
	rep.CheckMetric(report.CheckPriceFetchSuccessRate, report.StatusOK, "Fetched market price data for 1/1 monitored symbol.", 1)
	rep.Breakpoint(report.BreakpointFetch, report.StatusOK, "Fetched jackpot estimate from source.")
	return snapshot, nil
}

// evaluateFreshness never fails the run; stale or unparseable draw times only warn.
func (s *Service) evaluateFreshness(rep *report.Report, drawText string) {
	drawTime, ok := parser.DrawTimeUTC(drawText)
	if !ok {
		rep.ClearFreshness()
		rep.Check(report.CheckFreshnessWithinThreshold, report.StatusWarn, "Unable to parse source draw date/time for freshness validation.")
		rep.Warn("Freshness check skipped because draw date parsing failed.")
		return
	}

	lag := math.Max(0, s.now().Sub(drawTime).Seconds())
	lag = math.Round(lag*1000) / 1000
	threshold := s.settings.FreshnessThreshold().Seconds()
	rep.SetFreshness(drawTime, lag)

	if lag <= threshold {
		rep.CheckMetric(report.CheckFreshnessWithinThreshold, report.StatusOK,
			fmt.Sprintf("Freshness lag %.1fs is within threshold %.1fs.", lag, threshold), lag)
		return
	}

	rep.CheckMetric(report.CheckFreshnessWithinThreshold, report.StatusWarn,
		fmt.Sprintf("Freshness lag %.1fs exceeds threshold %.1fs.", lag, threshold), lag)
	rep.Warn("Source data appears stale; investigate upstream freshness.")
	s.logger.Warn().Float64("lag_seconds", lag).Float64("threshold_seconds", threshold).Msg("source data appears stale")
}

func (s *Service) evaluateRule(rep *report.Report, snapshot parser.DrawSnapshot, threshold decimal.Decimal, triggered bool) {
	generated := 0
	if triggered {
		generated = 1
	}
	rep.SetRowCount(report.RowAlertsGenerated, generated)
	rep.CheckMetric(report.CheckRulesEvaluated, report.StatusOK, "Signal evaluation completed for threshold rule.", 1)
	rep.Breakpoint(report.BreakpointRules, report.StatusOK, fmt.Sprintf(
		"Signal evaluated: jackpot_estimate=%s, threshold_amount=%s, triggered=%t.",
		snapshot.JackpotEstimate.StringFixed(2), threshold.StringFixed(2), triggered,
	))
	s.logger.Info().
		Str("jackpot_estimate", snapshot.JackpotEstimate.String()).
		Str("threshold_amount", threshold.String()).
		Bool("triggered", triggered).
		Str("draw", snapshot.DrawIdentity).
		Msg("threshold rule evaluated")
}

func (s *Service) skipBelowThreshold(rep *report.Report, snapshot parser.DrawSnapshot, threshold decimal.Decimal) {
	fmt.Fprintf(s.out, "No alert: jackpot_estimate=%s, threshold_amount=%s, draw_datetime_text=%s\n",
		alerting.FormatAmount(snapshot.JackpotEstimate), alerting.FormatAmount(threshold), snapshot.DrawDateTimeText)

	rep.CheckMetric(report.CheckTelegramSendSuccessRate, report.StatusOK, "No alert generated; Telegram send not required.", 1)
	rep.CheckMetric(report.CheckStatePersisted, report.StatusOK, "No state write required because signal did not trigger.", 1)
	rep.Breakpoint(report.BreakpointState, report.StatusOK, "State unchanged because signal did not trigger.")
	rep.Breakpoint(report.BreakpointTelegram, report.StatusOK, "Telegram send skipped because signal did not trigger.")
}

// dedupeStage reports whether the draw was already alerted.
func (s *Service) dedupeStage(ctx context.Context, rep *report.Report, snapshot parser.DrawSnapshot) (bool, error) {
	last, found, err := s.store.Read(ctx)
	if err != nil {
		detail := fmt.Sprintf("State read failed: %v", err)
		rep.CheckMetric(report.CheckStatePersisted, report.StatusFail, detail, 0)
		rep.Breakpoint(report.BreakpointState, report.StatusFail, detail)
		return false, fmt.Errorf("state read failed: %w", err)
	}
	rep.Breakpoint(report.BreakpointState, report.StatusOK, "State read completed for dedupe check.")

	if !found || last != snapshot.DrawIdentity {
		return false, nil
	}

	fmt.Fprintln(s.out, "Already alerted for this draw")
	rep.CheckMetric(report.CheckTelegramSendSuccessRate, report.StatusOK, "Duplicate draw detected; Telegram send skipped.", 1)
	rep.CheckMetric(report.CheckStatePersisted, report.StatusOK, "State already contains the current draw id.", 1)
	rep.Breakpoint(report.BreakpointState, report.StatusOK, "Duplicate draw found in state; no write required.")
	rep.Breakpoint(report.BreakpointTelegram, report.StatusOK, "Telegram send skipped because draw was already alerted.")
	s.logger.Info().Str("draw", snapshot.DrawIdentity).Msg("draw already alerted")
	return true, nil
}

func (s *Service) renderStage(rep *report.Report, cfg *config.Config, snapshot parser.DrawSnapshot, threshold decimal.Decimal) (string, error) {
	fields := alerting.AlertFields(snapshot.JackpotEstimate, threshold, cfg.Threshold.Currency, snapshot.DrawDateTimeText)
	message, err := alerting.RenderTemplate(cfg.Alert.MessageTemplate, fields)
	if err != nil {
		detail := fmt.Sprintf("Signal transformation failed while rendering alert template: %v", err)
		rep.CheckMetric(report.CheckRulesEvaluated, report.StatusFail, detail, 0)
		rep.Breakpoint(report.BreakpointRules, report.StatusFail, detail)
		return "", fmt.Errorf("render alert template: %w", err)
	}
	return message, nil
}

func (s *Service) sendStage(ctx context.Context, rep *report.Report, cfg *config.Config, message string) error {
	if err := s.newNotifier(cfg).Send(ctx, message); err != nil {
		detail := fmt.Sprintf("Telegram send failed: %v", err)
		rep.SetRowCount(report.RowAlertsFailed, 1)
		rep.CheckMetric(report.CheckTelegramSendSuccessRate, report.StatusFail, detail, 0)
		rep.CheckMetric(report.CheckStatePersisted, report.StatusWarn, "State persistence skipped because Telegram delivery failed.", 0)
		rep.Breakpoint(report.BreakpointTelegram, report.StatusFail, detail)
		return fmt.Errorf("telegram send failed: %w", err)
	}

	fmt.Fprintln(s.out, "Alert sent.")
	rep.SetRowCount(report.RowAlertsSent, 1)
	rep.CheckMetric(report.CheckTelegramSendSuccessRate, report.StatusOK, "Telegram alert delivered.", 1)
	rep.Breakpoint(report.BreakpointTelegram, report.StatusOK, "Telegram alert sent successfully.")
	return nil
}

func (s *Service) persistStage(ctx context.Context, rep *report.Report, snapshot parser.DrawSnapshot, okDetail string) error {
	if err := s.store.Write(ctx, snapshot.DrawIdentity); err != nil {
		detail := fmt.Sprintf("State write failed: %v", err)
		rep.CheckMetric(report.CheckStatePersisted, report.StatusFail, detail, 0)
		rep.Breakpoint(report.BreakpointState, report.StatusFail, detail)
		return fmt.Errorf("state write failed: %w", err)
	}

	rep.CheckMetric(report.CheckStatePersisted, report.StatusOK, okDetail, 1)
	rep.Breakpoint(report.BreakpointState, report.StatusOK, "State file updated with latest draw id.")
	s.logger.Info().Str("draw", snapshot.DrawIdentity).Msg("alert state persisted")
	return nil
}
