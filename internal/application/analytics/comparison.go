package analytics

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dplus/backend/internal/domain/order"
)

// Mode selects how a baseline window is derived from the current one.
type Mode string

const (
	ModeDOD            Mode = "DOD"
	ModeWOW            Mode = "WOW"
	ModeMOM            Mode = "MOM"
	ModeQOQConsecutive Mode = "QOQ_CONSECUTIVE"
	ModeQOQSequential  Mode = "QOQ_SEQUENTIAL"
	ModeQOQYoY         Mode = "QOQ_YOY"
)

// ParseMode validates a mode string from the API surface.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDOD, ModeWOW, ModeMOM, ModeQOQConsecutive, ModeQOQSequential, ModeQOQYoY:
		return Mode(s), nil
	default:
		return "", order.NewDomainError(order.ErrCodeInvalidInput,
			fmt.Sprintf("unknown comparison mode %q", s))
	}
}

// DateRange is an inclusive range of calendar days; From and To are
// midnight values in the canonical timezone.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Days returns the inclusive length of the range in days.
func (r DateRange) Days() int {
	return int(r.To.Sub(r.From).Hours()/24) + 1
}

// Shift moves the whole range by a number of days.
func (r DateRange) Shift(days int) DateRange {
	return DateRange{
		From: r.From.AddDate(0, 0, days),
		To:   r.To.AddDate(0, 0, days),
	}
}

// BaselineRange derives the prior-period window for a comparison. The
// baseline always has exactly the same length as the current range, so a
// partial current period compares against an equally partial baseline.
// n applies to QOQ_SEQUENTIAL only (how many quarters back) and must be
// at least 1.
func BaselineRange(current DateRange, mode Mode, n int) (DateRange, error) {
	if current.To.Before(current.From) {
		return DateRange{}, order.NewDomainError(order.ErrCodeInvalidInput,
			"range end precedes its start")
	}
	length := current.Days()

	switch mode {
	case ModeDOD:
		return current.Shift(-1), nil
	case ModeWOW:
		return current.Shift(-7), nil
	case ModeMOM:
		return anchoredRange(current.From, 0, -1, length), nil
	case ModeQOQConsecutive:
		return quarterRange(current.From, 1, length), nil
	case ModeQOQSequential:
		if n < 1 {
			return DateRange{}, order.NewDomainError(order.ErrCodeInvalidInput,
				"sequential comparison needs n >= 1 quarters back")
		}
		return quarterRange(current.From, n, length), nil
	case ModeQOQYoY:
		return quarterRange(current.From, 4, length), nil
	default:
		return DateRange{}, order.NewDomainError(order.ErrCodeInvalidInput,
			fmt.Sprintf("unknown comparison mode %q", mode))
	}
}

// anchoredRange places a window of the given length at the same
// day-of-month in another month, clamping the anchor when the target
// month is shorter.
func anchoredRange(from time.Time, years, months, length int) DateRange {
	first := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, from.Location())
	target := first.AddDate(years, months, 0)

	day := from.Day()
	if last := daysInMonth(target); day > last {
		day = last
	}
	start := time.Date(target.Year(), target.Month(), day, 0, 0, 0, 0, from.Location())
	return DateRange{From: start, To: start.AddDate(0, 0, length-1)}
}

// quarterRange places a window of the given length at the same
// day-of-quarter offset, quartersBack quarters earlier.
func quarterRange(from time.Time, quartersBack, length int) DateRange {
	qStart := quarterStart(from)
	offset := int(from.Sub(qStart).Hours() / 24)

	targetQStart := qStart.AddDate(0, -3*quartersBack, 0)
	start := targetQStart.AddDate(0, 0, offset)
	// an offset from a 92-day quarter can spill past a 90-day one
	if nextQ := targetQStart.AddDate(0, 3, 0); !start.Before(nextQ) {
		start = nextQ.AddDate(0, 0, -1)
	}
	return DateRange{From: start, To: start.AddDate(0, 0, length-1)}
}

// quarterStart returns the first day of t's calendar quarter.
func quarterStart(t time.Time) time.Time {
	q := (int(t.Month()) - 1) / 3
	return time.Date(t.Year(), time.Month(q*3+1), 1, 0, 0, 0, 0, t.Location())
}

func daysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// Direction of a delta between two values.
const (
	DirectionUp      = "up"
	DirectionDown    = "down"
	DirectionNeutral = "neutral"
)

// Delta describes the change between a current and a baseline value.
// Percentage is nil when the baseline is zero and the current value is
// zero too; a fresh value against an empty baseline reports 100%.
type Delta struct {
	Absolute   decimal.Decimal  `json:"absolute"`
	Percentage *decimal.Decimal `json:"percentage,omitempty"`
	Direction  string           `json:"direction"`
}

// ComputeDelta calculates the change from baseline to current.
func ComputeDelta(current, baseline decimal.Decimal) Delta {
	if baseline.IsZero() {
		if current.IsPositive() {
			pct := decimal.NewFromInt(100)
			return Delta{Absolute: current, Percentage: &pct, Direction: DirectionUp}
		}
		return Delta{Absolute: decimal.Zero, Direction: DirectionNeutral}
	}

	absolute := current.Sub(baseline)
	pct := absolute.Div(baseline).Mul(decimal.NewFromInt(100)).Round(2)
	direction := DirectionNeutral
	switch {
	case absolute.IsPositive():
		direction = DirectionUp
	case absolute.IsNegative():
		direction = DirectionDown
	}
	return Delta{Absolute: absolute, Percentage: &pct, Direction: direction}
}

// QuickRange resolves a named range relative to a reference day, the way
// dashboards offer one-click windows.
func QuickRange(name string, today time.Time) (DateRange, error) {
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	switch name {
	case "today":
		return DateRange{From: day, To: day}, nil
	case "yesterday":
		y := day.AddDate(0, 0, -1)
		return DateRange{From: y, To: y}, nil
	case "last_7_days":
		return DateRange{From: day.AddDate(0, 0, -6), To: day}, nil
	case "last_30_days":
		return DateRange{From: day.AddDate(0, 0, -29), To: day}, nil
	case "last_90_days":
		return DateRange{From: day.AddDate(0, 0, -89), To: day}, nil
	case "this_month":
		return DateRange{From: time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location()), To: day}, nil
	case "last_month":
		firstOfThis := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
		lastOfPrev := firstOfThis.AddDate(0, 0, -1)
		return DateRange{
			From: time.Date(lastOfPrev.Year(), lastOfPrev.Month(), 1, 0, 0, 0, 0, day.Location()),
			To:   lastOfPrev,
		}, nil
	case "this_quarter":
		return DateRange{From: quarterStart(day), To: day}, nil
	default:
		return DateRange{}, order.NewDomainError(order.ErrCodeInvalidInput,
			fmt.Sprintf("unknown quick range %q", name))
	}
}
