package authflow

import (
	"context"

	"github.com/goliatone/go-auth-flow/timer"
)

type factorLevel int

const (
	levelFirst factorLevel = iota
	levelSecond
	levelSignUp
)

var (
	firstFactorPreference  = []Strategy{StrategyPassword, StrategyEmailCode, StrategyEmailLink, StrategyPhoneCode}
	secondFactorPreference = []Strategy{StrategyTOTP, StrategyPhoneCode, StrategyBackupCode}
)

// verificationStep verifies a first factor, a second factor or a sign-up
// contact. Strategies that deliver a code are prepared on entry and may be
// re-sent once the resend cooldown timer completed.
type verificationStep struct {
	baseBehavior
	level   factorLevel
	current Factor
	timer   *timer.Timer
	unsub   func()
	sent    bool
}

func (v *verificationStep) enter(ctx context.Context, s *stepActor) {
	v.level = factorLevelFor(s.flow, s.resource)
	v.current, _ = v.defaultFactor(s.resource)
	s.strategy = v.current.Strategy

	opts := append([]timer.Option{
		timer.WithInitial(s.config.GetResendCooldown()),
		timer.WithTimeout(s.config.GetTimerTick()),
		timer.WithLogger(s.deps.provider.GetLogger(LoggerTimer)),
		timer.WithID(s.instance() + ":timer"),
	}, s.deps.timerOpts...)
	v.timer = timer.New(ctx, opts...)

	instance := s.instance()
	v.unsub = v.timer.Subscribe(func(e timer.Event) {
		s.report(stepTimer{instance: instance, event: e})
	})

	v.prepare(ctx, s)
}

func (v *verificationStep) close() {
	if v.unsub != nil {
		v.unsub()
	}
	if v.timer != nil {
		v.timer.Close()
	}
}

func (v *verificationStep) timerSnapshot() *timer.Snapshot {
	if v.timer == nil {
		return nil
	}
	snap := v.timer.Snapshot()
	return &snap
}

func (v *verificationStep) prepare(ctx context.Context, s *stepActor) {
	if !v.current.Strategy.NeedsPreparation() {
		return
	}
	s.attempt(ctx, stepEventPrepare, purposePrepare, AttemptRequest{
		Action:   v.prepareAction(),
		Strategy: v.current.Strategy,
		FactorID: v.current.ID,
	})
}

func (v *verificationStep) submit(_ context.Context, _ *stepActor, values map[string]string) (AttemptRequest, error) {
	strategy := v.current.Strategy
	switch {
	case strategy == "":
		return AttemptRequest{}, withMeta(ErrStrategyNotSupported, map[string]any{"level": v.levelName()})
	case strategy == StrategyEmailLink:
		return AttemptRequest{}, withMeta(ErrInvalidEvent, map[string]any{
			"event":    "SUBMIT",
			"strategy": string(strategy),
		})
	case strategy == StrategyPassword:
		password := values[FieldPassword]
		if password == "" {
			return AttemptRequest{}, missingField(FieldPassword)
		}
		return AttemptRequest{
			Action:   v.attemptAction(),
			Strategy: strategy,
			Fields:   map[string]string{FieldPassword: password},
		}, nil
	}

	code := values[FieldCode]
	if code == "" {
		return AttemptRequest{}, missingField(FieldCode)
	}
	return AttemptRequest{
		Action:   v.attemptAction(),
		Strategy: strategy,
		FactorID: v.current.ID,
		Fields:   map[string]string{FieldCode: code},
	}, nil
}

func (v *verificationStep) succeeded(ctx context.Context, s *stepActor, purpose attemptPurpose, res *Resource) {
	if purpose != purposePrepare {
		s.done(res)
		return
	}

	v.sent = true
	if err := v.timer.Reset(timer.ResetInitial(s.config.GetResendCooldown())); err == nil {
		_ = v.timer.Start()
	}
	s.report(stepResource{instance: s.instance(), resource: res.Clone()})
}

func (v *verificationStep) control(ctx context.Context, s *stepActor, ev Event) bool {
	switch e := ev.(type) {
	case TimerControl:
		v.controlTimer(e)
	case Retry:
		if v.sent && !v.timer.Snapshot().Done() {
			s.logger.Debug("resend ignored during cooldown", "remaining", v.timer.Snapshot().Remaining)
			return true
		}
		v.prepare(ctx, s)
	case StrategySet:
		v.switchTo(ctx, s, e.Strategy)
	case PasswordForgot:
		if v.level != levelFirst {
			s.fail(ctx, withMeta(ErrStrategyNotSupported, map[string]any{"level": v.levelName()}), true)
			return true
		}
		for _, strategy := range []Strategy{StrategyResetPasswordEmailCode, StrategyResetPasswordPhoneCode} {
			if _, ok := findFactor(v.factors(s.resource), strategy); ok {
				v.switchTo(ctx, s, strategy)
				return true
			}
		}
		s.fail(ctx, withMeta(ErrStrategyNotSupported, map[string]any{"strategy": "reset_password"}), true)
	default:
		return false
	}
	return true
}

func (v *verificationStep) switchTo(ctx context.Context, s *stepActor, strategy Strategy) {
	if state := s.machine.Current(); state != StepStatePending {
		s.logger.Debug("strategy change ignored while busy", "state", state)
		return
	}
	if strategy == s.strategy && v.current.Strategy == strategy {
		s.logger.Debug("strategy already active", "strategy", strategy)
		return
	}
	factor, ok := findFactor(v.factors(s.resource), strategy)
	if !ok {
		s.fail(ctx, withMeta(ErrStrategyNotSupported, map[string]any{"strategy": string(strategy)}), true)
		return
	}

	v.current = factor
	v.sent = false
	s.strategy = strategy
	if err := v.timer.Reset(); err != nil {
		s.logger.Warn("timer reset failed", "error", err)
	}
	if err := s.form.Clear(ctx, FieldCode); err != nil {
		s.logger.Error("clear code field failed", "error", err)
	}
	v.prepare(ctx, s)
}

func (v *verificationStep) controlTimer(ctl TimerControl) {
	switch ctl.Action {
	case TimerStart:
		_ = v.timer.Start()
	case TimerStop:
		_ = v.timer.Stop()
	case TimerToggle:
		_ = v.timer.Toggle()
	case TimerReset:
		var opts []timer.ResetOption
		if ctl.Initial != nil {
			opts = append(opts, timer.ResetInitial(*ctl.Initial))
		}
		if ctl.Timeout > 0 {
			opts = append(opts, timer.ResetTimeout(ctl.Timeout))
		}
		_ = v.timer.Reset(opts...)
	}
}

func (v *verificationStep) factors(res *Resource) []Factor {
	if res == nil {
		return nil
	}
	switch v.level {
	case levelSecond:
		return res.SupportedSecondFactors
	case levelSignUp:
		var out []Factor
		for _, field := range res.UnverifiedFields {
			switch field {
			case "email_address":
				out = append(out, Factor{Strategy: StrategyEmailCode})
			case "phone_number":
				out = append(out, Factor{Strategy: StrategyPhoneCode})
			}
		}
		return out
	default:
		return res.SupportedFirstFactors
	}
}

func (v *verificationStep) defaultFactor(res *Resource) (Factor, bool) {
	factors := v.factors(res)
	if len(factors) == 0 {
		return Factor{}, false
	}

	if v.level == levelFirst && res.FirstFactorVerification != nil {
		if f, ok := findFactor(factors, res.FirstFactorVerification.Strategy); ok {
			return f, true
		}
	}

	preference := firstFactorPreference
	if v.level == levelSecond {
		preference = secondFactorPreference
	}
	for _, strategy := range preference {
		if f, ok := findFactor(factors, strategy); ok {
			return f, true
		}
	}
	return factors[0], true
}

func (v *verificationStep) prepareAction() AttemptAction {
	switch v.level {
	case levelSecond:
		return ActionPrepareSecondFactor
	case levelSignUp:
		return ActionPrepareVerification
	default:
		return ActionPrepareFirstFactor
	}
}

func (v *verificationStep) attemptAction() AttemptAction {
	switch v.level {
	case levelSecond:
		return ActionAttemptSecondFactor
	case levelSignUp:
		return ActionAttemptVerification
	default:
		return ActionAttemptFirstFactor
	}
}

func (v *verificationStep) levelName() string {
	switch v.level {
	case levelSecond:
		return "second_factor"
	case levelSignUp:
		return "verification"
	default:
		return "first_factor"
	}
}

func factorLevelFor(flow FlowKind, res *Resource) factorLevel {
	if flow == FlowSignUp {
		return levelSignUp
	}
	if StatusOf(res) == StatusNeedsSecondFactor {
		return levelSecond
	}
	return levelFirst
}
