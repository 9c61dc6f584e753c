// Package deliverytime turns a letter's delivery instant into a status and a
// human-readable countdown. Everything here is pure: callers pass "now".
package deliverytime

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Status is the derived delivery state of a letter.
type Status int

const (
	Pending Status = iota
	Delivered
)

func (s Status) String() string {
	if s == Delivered {
		return "delivered"
	}
	return "pending"
}

// StatusAt reports Delivered iff now >= delivery.
func StatusAt(now, delivery time.Time) Status {
	if now.Before(delivery) {
		return Pending
	}
	return Delivered
}

// Locale selects the wording of Remaining.
type Locale int

const (
	English Locale = iota
	Chinese
)

var matcher = language.NewMatcher([]language.Tag{language.English, language.Chinese})

// ParseLocale matches a BCP 47 tag or Accept-Language style list against the
// supported locales. Anything unrecognised falls back to English.
func ParseLocale(s string) Locale {
	tags, _, err := language.ParseAcceptLanguage(s)
	if err != nil || len(tags) == 0 {
		return English
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No || idx != 1 {
		return English
	}
	return Chinese
}

func (l Locale) String() string {
	if l == Chinese {
		return "zh"
	}
	return "en"
}

type words struct {
	notSet, delivered               string
	year, day, hour, minute, second string
	after                           string
}

var dictionary = map[Locale]words{
	English: {
		notSet:    "Delivery date not set",
		delivered: "Delivered",
		year:      "year",
		day:       "day",
		hour:      "hour",
		minute:    "minute",
		second:    "second",
		after:     "later",
	},
	Chinese: {
		notSet:    "未设置投递日期",
		delivered: "已送达",
		year:      "年",
		day:       "天",
		hour:      "时",
		minute:    "分",
		second:    "秒",
		after:     "后",
	},
}

// DeliveredToken returns the fixed "delivered" wording for loc.
func DeliveredToken(loc Locale) string {
	return lookup(loc).delivered
}

func lookup(loc Locale) words {
	w, ok := dictionary[loc]
	if !ok {
		return dictionary[English]
	}
	return w
}

// parts is a remaining duration split into calendar-free units; a year is
// always 365 days.
type parts struct {
	years, days, hours, minutes, seconds              int64
	totalDays, totalHours, totalMinutes, totalSeconds int64
}

func split(d time.Duration) parts {
	secs := int64(d / time.Second)
	// a pending letter never reads "0 seconds"
	if secs == 0 && d > 0 {
		secs = 1
	}

	p := parts{totalSeconds: secs}
	p.totalMinutes = secs / 60
	p.totalHours = p.totalMinutes / 60
	p.totalDays = p.totalHours / 24
	p.years = p.totalDays / 365

	p.days = p.totalDays % 365
	p.hours = p.totalHours % 24
	p.minutes = p.totalMinutes % 60
	p.seconds = secs % 60
	return p
}

// Remaining renders the time left until delivery. A zero delivery yields the
// "not set" wording; delivery <= now yields the delivered token.
func Remaining(now, delivery time.Time, loc Locale) string {
	w := lookup(loc)
	if delivery.IsZero() {
		return w.notSet
	}
	if !now.Before(delivery) {
		return w.delivered
	}

	p := split(delivery.Sub(now))
	if loc == Chinese {
		return chinese(w, p)
	}
	return english(w, p)
}

func english(w words, p parts) string {
	unit := func(n int64, name string) string {
		if n != 1 {
			name += "s"
		}
		return fmt.Sprintf("%d %s", n, name)
	}

	var fields []string
	switch {
	case p.years > 0:
		fields = []string{unit(p.years, w.year), unit(p.days, w.day), unit(p.hours, w.hour)}
	case p.totalDays > 0:
		fields = []string{unit(p.totalDays, w.day), unit(p.hours, w.hour)}
	case p.totalHours > 0:
		fields = []string{unit(p.totalHours, w.hour), unit(p.minutes, w.minute)}
	case p.totalMinutes > 0:
		fields = []string{unit(p.totalMinutes, w.minute)}
	default:
		fields = []string{unit(p.totalSeconds, w.second)}
	}
	return strings.Join(append(fields, w.after), " ")
}

func chinese(w words, p parts) string {
	var b strings.Builder
	write := func(n int64, name string) { fmt.Fprintf(&b, "%d%s", n, name) }

	switch {
	case p.years > 0:
		write(p.years, w.year)
		write(p.days, w.day)
		write(p.hours, w.hour)
		write(p.minutes, w.minute)
		write(p.seconds, w.second)
	case p.totalDays > 0:
		write(p.totalDays, w.day)
		write(p.hours, w.hour)
		write(p.minutes, w.minute)
		write(p.seconds, w.second)
	case p.totalHours > 0:
		write(p.totalHours, w.hour)
		write(p.minutes, w.minute)
		write(p.seconds, w.second)
	case p.totalMinutes > 0:
		write(p.totalMinutes, w.minute)
		write(p.seconds, w.second)
	default:
		write(p.totalSeconds, w.second)
	}
	b.WriteString(w.after)
	return b.String()
}

// FormatDate renders t as "2006-1-2 15:04:05" in t's location.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "Date not set"
	}
	return t.Format("2006-1-2 15:04:05")
}
