package services

import (
	"fmt"
	"time"

	"github.com/coinledger/backend/internal/models"
)

const (
	PeriodDay   = "day"
	PeriodWeek  = "week"
	PeriodMonth = "month"
)

// Window selects the entries a summary covers: either a named period relative
// to now, or explicit calendar filters on the entry's date string.
// The zero Window covers the whole ledger.
type Window struct {
	Period string `json:"period" validate:"omitempty,oneof=day week month"`
	Year   int    `json:"year" validate:"omitempty,gte=1970,lte=9999"`
	Month  int    `json:"month" validate:"omitempty,gte=1,lte=12"`
	Day    int    `json:"day" validate:"omitempty,gte=1,lte=31"`
}

func (w Window) check(v *ValidationHelper) error {
	if err := v.Validate(&w); err != nil {
		return err
	}
	switch {
	case w.Period != "" && (w.Year != 0 || w.Month != 0 || w.Day != 0):
		return newValidationError("period", "cannot be combined with year, month or day")
	case w.Month != 0 && w.Year == 0:
		return newValidationError("year", "is required when month is set")
	case w.Day != 0 && w.Month == 0:
		return newValidationError("month", "is required when day is set")
	}
	return nil
}

// resolvedWindow is a Window pinned to concrete filter values
type resolvedWindow struct {
	label      string
	from, to   *time.Time
	datePrefix string
}

func (r resolvedWindow) apply(f *models.EntryFilter) {
	f.CreatedFrom = r.from
	f.CreatedTo = r.to
	f.DatePrefix = r.datePrefix
}

// resolve turns w into filter bounds. Named periods are computed in loc and
// weeks begin on weekStart.
func (w Window) resolve(now time.Time, loc *time.Location, weekStart time.Weekday) resolvedWindow {
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	var from, to time.Time
	switch w.Period {
	case PeriodDay:
		from, to = today, today.AddDate(0, 0, 1)
	case PeriodWeek:
		offset := (int(today.Weekday()) - int(weekStart) + 7) % 7
		from = today.AddDate(0, 0, -offset)
		to = from.AddDate(0, 0, 7)
	case PeriodMonth:
		from = time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
		to = from.AddDate(0, 1, 0)
	default:
		return w.resolveDate()
	}

	from, to = from.UTC(), to.UTC()
	return resolvedWindow{
		label: fmt.Sprintf("%s:%s", w.Period, from.In(loc).Format(time.DateOnly)),
		from:  &from,
		to:    &to,
	}
}

func (w Window) resolveDate() resolvedWindow {
	var prefix string
	switch {
	case w.Day != 0:
		prefix = fmt.Sprintf("%04d-%02d-%02d", w.Year, w.Month, w.Day)
	case w.Month != 0:
		prefix = fmt.Sprintf("%04d-%02d", w.Year, w.Month)
	case w.Year != 0:
		prefix = fmt.Sprintf("%04d", w.Year)
	default:
		return resolvedWindow{label: "all"}
	}
	return resolvedWindow{label: "date:" + prefix, datePrefix: prefix}
}
