package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/wordarena/arena-backend/models"
)

// A PeriodKey identifies one ranking period. Weekly keys use the ISO week
// label ("2026-W35"), daily keys the civil date ("2026-08-31"). The
// canonical week rule is ISO: weeks start Monday 00:00 in the competition
// timezone, applied uniformly everywhere.
type PeriodKey struct {
	Kind  models.CompetitionKind
	Start time.Time // first instant of the period, in the competition timezone
	End   time.Time // last whole second of the period
}

var (
	ErrInvalidPeriodKey = errors.New("invalid period key")

	weeklyKeyPattern = regexp.MustCompile(`^(\d{4})-W(\d{2})$`)
	dailyKeyPattern  = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
)

// String renders the canonical key label.
func (k PeriodKey) String() string {
	if k.Kind == models.KindWeekly {
		year, week := k.Start.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	}
	return k.Start.Format("2006-01-02")
}

// WeekStart returns Monday 00:00 of t's ISO week in loc.
func WeekStart(t time.Time, loc *time.Location) time.Time {
	day := StartOfCivilDay(t, loc)
	// time.Weekday has Sunday == 0; shift so Monday == 0.
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// PeriodFor returns the period containing t for the given competition kind.
func PeriodFor(kind models.CompetitionKind, t time.Time, loc *time.Location) PeriodKey {
	if kind == models.KindWeekly {
		start := WeekStart(t, loc)
		return PeriodKey{
			Kind:  models.KindWeekly,
			Start: start,
			End:   start.AddDate(0, 0, 7).Add(-time.Second),
		}
	}
	start := StartOfCivilDay(t, loc)
	return PeriodKey{
		Kind:  models.KindDaily,
		Start: start,
		End:   EndOfCivilDay(t, loc),
	}
}

// ParsePeriodKey parses a key label produced by String. Weekly labels are
// resolved via the ISO rule that January 4th always falls in week 1.
func ParsePeriodKey(key string, loc *time.Location) (PeriodKey, error) {
	if m := weeklyKeyPattern.FindStringSubmatch(key); m != nil {
		year, _ := strconv.Atoi(m[1])
		week, _ := strconv.Atoi(m[2])
		if week < 1 || week > 53 {
			return PeriodKey{}, fmt.Errorf("%w: week %d out of range in %q", ErrInvalidPeriodKey, week, key)
		}
		jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, loc)
		start := WeekStart(jan4, loc).AddDate(0, 0, (week-1)*7)
		if gotYear, gotWeek := start.ISOWeek(); gotYear != year || gotWeek != week {
			return PeriodKey{}, fmt.Errorf("%w: %q does not exist", ErrInvalidPeriodKey, key)
		}
		return PeriodKey{
			Kind:  models.KindWeekly,
			Start: start,
			End:   start.AddDate(0, 0, 7).Add(-time.Second),
		}, nil
	}

	if m := dailyKeyPattern.FindStringSubmatch(key); m != nil {
		day, err := time.ParseInLocation("2006-01-02", key, loc)
		if err != nil {
			return PeriodKey{}, fmt.Errorf("%w: %q: %v", ErrInvalidPeriodKey, key, err)
		}
		return PeriodKey{
			Kind:  models.KindDaily,
			Start: day,
			End:   EndOfCivilDay(day, loc),
		}, nil
	}

	return PeriodKey{}, fmt.Errorf("%w: %q", ErrInvalidPeriodKey, key)
}
