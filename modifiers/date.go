package modifiers

import (
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Layouts tried, in order, on dates given as text.
var dateInputs = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"02.01.2006",
	"02.01.2006 15:04",
	"2006/01/02",
}

// Default output layouts by language; others get ISO dates.
var dateLayouts = map[string]string{
	"ru": "02.01.2006", "uk": "02.01.2006", "be": "02.01.2006", "kk": "02.01.2006",
	"de": "02.01.2006", "pl": "02.01.2006", "cs": "02.01.2006", "fi": "2.1.2006",
	"fr": "02/01/2006", "es": "02/01/2006", "it": "02/01/2006", "pt": "02/01/2006",
	"en": "01/02/2006",
}

var (
	monthsRu = [...]string{"январь", "февраль", "март", "апрель", "май", "июнь",
		"июль", "август", "сентябрь", "октябрь", "ноябрь", "декабрь"}
	monthsRuGenitive = [...]string{"января", "февраля", "марта", "апреля", "мая", "июня",
		"июля", "августа", "сентября", "октября", "ноября", "декабря"}
	monthsRuShort = [...]string{"янв", "фев", "мар", "апр", "мая", "июн",
		"июл", "авг", "сен", "окт", "ноя", "дек"}
	weekdaysRu      = [...]string{"воскресенье", "понедельник", "вторник", "среда", "четверг", "пятница", "суббота"}
	weekdaysRuShort = [...]string{"вс", "пн", "вт", "ср", "чт", "пт", "сб"}
)

// Go layout words swapped for markers Format leaves alone.
const (
	markMonth      = "\x00m\x00"
	markMonthShort = "\x00b\x00"
	markDay        = "\x00d\x00"
	markDayShort   = "\x00a\x00"
)

// DateFormat formats a date with a Go layout. Without one the usual layout
// of the locale is used. For Russian the month and weekday names are
// Russian, months in the genitive when the layout has a day:
//
//	{{ odf_value(deadline | date_format) }}               → "01.03.2026"
//	{{ odf_value(deadline | date_format("2 January 2006")) }} → "1 марта 2026"
//
// Values may be time.Time, Unix seconds or text in a common layout; text
// that is not a date comes back unchanged.
func DateFormat(tag language.Tag, v any, layout ...string) string {
	t, ok := toTime(v)
	if !ok {
		return strings.TrimSpace(str(v))
	}
	if t.IsZero() {
		return ""
	}

	l := ""
	if len(layout) > 0 {
		l = layout[0]
	}
	if blank(l) {
		l = defaultDateLayout(tag)
	}

	if base, _ := wordsTag(tag).Base(); base.String() != "ru" {
		return t.Format(l)
	}
	hasDay := strings.Contains(strings.ReplaceAll(l, "2006", ""), "2")
	l = strings.NewReplacer(
		"January", markMonth, "Jan", markMonthShort,
		"Monday", markDay, "Mon", markDayShort,
	).Replace(l)

	month := monthsRu[t.Month()-1]
	if hasDay {
		month = monthsRuGenitive[t.Month()-1]
	}
	return strings.NewReplacer(
		markMonth, month,
		markMonthShort, monthsRuShort[t.Month()-1],
		markDay, weekdaysRu[t.Weekday()],
		markDayShort, weekdaysRuShort[t.Weekday()],
	).Replace(t.Format(l))
}

func defaultDateLayout(tag language.Tag) string {
	if tag.IsRoot() {
		return time.DateOnly
	}
	if region, conf := tag.Region(); conf == language.Exact && region.String() == "GB" {
		return "02/01/2006"
	}
	base, _ := tag.Base()
	if l, ok := dateLayouts[base.String()]; ok {
		return l
	}
	return time.DateOnly
}

func toTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, true
	case time.Time:
		return x, true
	case *time.Time:
		if x == nil {
			return time.Time{}, true
		}
		return *x, true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return time.Time{}, true
		}
		for _, in := range dateInputs {
			if t, err := time.Parse(in, s); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	}
	if secs, ok := toFloat(v); ok {
		return time.Unix(int64(secs), 0).UTC(), true
	}
	return time.Time{}, false
}
