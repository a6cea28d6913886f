package ledger

import (
	"errors"
	"fmt"
	"time"

	"wallet/internal/models"
	"wallet/internal/money"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidJobProfile = errors.New("invalid job profile")
	ErrPaycheckNotReady  = errors.New("paycheck not ready")
	ErrZeroIncome        = errors.New("weekly income is zero")
)

const (
	PaycheckReason   = "Weekly Paycheck"
	IncomeCategory   = "Income"
	PaycheckCooldown = 7 * 24 * time.Hour
)

var (
	weekdaysPerWeek = decimal.NewFromInt(5)
	weekendDays     = decimal.NewFromInt(2)
	hoursPerDay     = decimal.NewFromInt(24)
	weeksPerMonth   = decimal.RequireFromString("4.33")
)

type PaycheckState string

const (
	PaycheckReady          PaycheckState = "ready"
	PaycheckNeverCollected PaycheckState = "never_collected"
	PaycheckWaiting        PaycheckState = "waiting"
	PaycheckDisabled       PaycheckState = "disabled"
)

type PaycheckStatus struct {
	State        PaycheckState
	WeeklyIncome int64
	Remaining    time.Duration
}

func (s PaycheckStatus) CanCollect() bool {
	return s.State == PaycheckReady || s.State == PaycheckNeverCollected
}

// ComputeWeeklyIncome returns the weekly pay in minor units: five weekdays,
// plus two weekend days when enabled. A profile whose pay falls outside the
// money range earns 0.
func ComputeWeeklyIncome(profile models.JobProfile) int64 {
	weekly, err := money.FromDecimalChecked(weeklyIncome(profile))
	if err != nil {
		return 0
	}
	return weekly
}

func weeklyIncome(profile models.JobProfile) decimal.Decimal {
	weekly := profile.WeekdayHours.Mul(weekdaysPerWeek).Mul(profile.HourlyRate)
	if profile.Weekend {
		weekly = weekly.Add(profile.WeekendHours.Mul(weekendDays).Mul(profile.HourlyRate))
	}
	return weekly
}

// MonthlyEstimate is a fixed 4.33-weeks approximation, not calendar based.
func MonthlyEstimate(weekly int64) int64 {
	return money.FromDecimal(money.ToDecimal(weekly).Mul(weeksPerMonth))
}

func ValidateJobProfile(profile models.JobProfile) error {
	for _, value := range []decimal.Decimal{profile.HourlyRate, profile.WeekdayHours, profile.WeekendHours} {
		if value.IsNegative() {
			return ErrInvalidJobProfile
		}
	}
	if profile.WeekdayHours.GreaterThan(hoursPerDay) || profile.WeekendHours.GreaterThan(hoursPerDay) {
		return ErrInvalidJobProfile
	}
	if _, err := money.FromDecimalChecked(weeklyIncome(profile)); err != nil {
		return ErrInvalidJobProfile
	}
	return nil
}

// EvaluatePaycheck reports whether a paycheck can be collected at now. Zero
// income disables collection regardless of the cooldown.
func EvaluatePaycheck(profile models.JobProfile, lastPaycheckAt *time.Time, now time.Time) PaycheckStatus {
	status := PaycheckStatus{WeeklyIncome: ComputeWeeklyIncome(profile)}
	switch {
	case status.WeeklyIncome <= 0:
		status.State = PaycheckDisabled
	case lastPaycheckAt == nil:
		status.State = PaycheckNeverCollected
	default:
		elapsed := now.Sub(*lastPaycheckAt)
		if elapsed < 0 {
			elapsed = 0
		}
		if elapsed < PaycheckCooldown {
			status.State = PaycheckWaiting
			status.Remaining = PaycheckCooldown - elapsed
		} else {
			status.State = PaycheckReady
		}
	}
	return status
}

func (l *Ledger) SetJobProfile(profile models.JobProfile) error {
	if err := ValidateJobProfile(profile); err != nil {
		return err
	}
	l.account.Job = profile
	return nil
}

func (l *Ledger) PaycheckStatus() PaycheckStatus {
	return EvaluatePaycheck(l.account.Job, l.account.LastPaycheckAt, l.now())
}

func (l *Ledger) CollectPaycheck() (models.Transaction, error) {
	if err := ValidateJobProfile(l.account.Job); err != nil {
		return models.Transaction{}, err
	}
	now := l.now()
	status := EvaluatePaycheck(l.account.Job, l.account.LastPaycheckAt, now)
	if status.State == PaycheckDisabled {
		return models.Transaction{}, ErrZeroIncome
	}
	if !status.CanCollect() {
		return models.Transaction{}, ErrPaycheckNotReady
	}
	tx, err := l.recordGain(status.WeeklyIncome, PaycheckReason, models.SourceBank, IncomeCategory)
	if err != nil {
		return models.Transaction{}, err
	}
	collected := now.UTC()
	l.account.LastPaycheckAt = &collected
	return tx, nil
}

// FormatCountdown renders a remaining duration as "4d 0h 0m", rounding up to
// the next minute.
func FormatCountdown(d time.Duration) string {
	if d <= 0 {
		return "0d 0h 0m"
	}
	minutes := int64((d + time.Minute - 1) / time.Minute)
	return fmt.Sprintf("%dd %dh %dm", minutes/(24*60), minutes/60%24, minutes%60)
}
