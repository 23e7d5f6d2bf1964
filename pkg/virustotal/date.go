package virustotal

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // Asia/Kolkata must resolve on hosts without a zoneinfo database

	"github.com/ipcheck/ipcheck/pkg/dom"
)

// India Standard Time has no DST, so the fixed zone is exact when the
// zoneinfo lookup fails.
var ist = func() *time.Location {
	if loc, err := time.LoadLocation("Asia/Kolkata"); err == nil {
		return loc
	}
	return time.FixedZone("IST", 5*60*60+30*60)
}()

var tooltipLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	time.UnixDate,
	"Mon Jan 02 2006 15:04:05 GMT-0700",
	"Jan 2, 2006, 3:04:05 PM",
	"Jan 2, 2006 3:04:05 PM",
}

// ParseTooltip parses the timestamp shown in a time-ago tooltip. Strings
// without a zone are read as UTC.
func ParseTooltip(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	// "(India Standard Time)" style suffixes add nothing to the offset
	if i := strings.Index(s, " ("); i > 0 && strings.HasSuffix(s, ")") {
		s = s[:i]
	}
	for _, layout := range tooltipLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var leadingInt = regexp.MustCompile(`^\s*([+-]?\d+)`)

// ParseUnix reads a unix-seconds attribute, ignoring trailing garbage.
func ParseUnix(s string) (time.Time, bool) {
	m := leadingInt.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	sec, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(sec, 0), true
}

// FormatDate renders t as "DD/MM/YYYY HH:MM IST", followed by the relative
// label in parentheses when there is one.
func FormatDate(t time.Time, relative string) string {
	out := t.In(ist).Format("02/01/2006 15:04") + " IST"
	if relative != "" {
		out += " (" + relative + ")"
	}
	return out
}

// dateFrom extracts the analysis date from a time-ago element. An explicit
// tooltip wins over the unixtime attribute, even when it does not parse.
func dateFrom(el *dom.Node) (string, bool) {
	if el == nil {
		return "", false
	}
	var (
		t  time.Time
		ok bool
	)
	if tip, _ := el.Attr("data-tooltip-text"); tip != "" {
		t, ok = ParseTooltip(tip)
	} else if unix, _ := el.Attr("unixtime"); unix != "" {
		t, ok = ParseUnix(unix)
	}
	if !ok {
		return "", false
	}

	relative := el.TrimmedText()
	if relative == "" {
		relative = strings.Join(strings.Fields(el.DeepText()), " ")
	}
	return FormatDate(t, relative), true
}
