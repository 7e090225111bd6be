package common

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	shortDateRegex = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})$`)
	usDateRegex    = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4}|\d{2})$`)
	isoDateRegex   = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)

	amountNoiseRegex   = regexp.MustCompile(`[\s,$£€¥]`)
	plainNumberRegex   = regexp.MustCompile(`^(\d+(\.\d*)?|\.\d+)$`)
	periodYearRegex    = regexp.MustCompile(`(?i)period.*?\d{1,2}/\d{1,2}/(\d{4})`)
	plausibleYearRegex = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
)

// yearScanWindow is how much of the first page is searched for a bare year.
const yearScanWindow = 500

// NormalizeDate parses MM/DD, MM/DD/YYYY, MM/DD/YY and YYYY-MM-DD into a
// UTC midnight date. MM/DD takes its year from yearHint; two-digit years
// are read as 20YY.
func NormalizeDate(raw string, yearHint int) (time.Time, error) {
	s := strings.TrimSpace(raw)

	var year, month, day string
	if m := shortDateRegex.FindStringSubmatch(s); m != nil {
		month, day, year = m[1], m[2], strconv.Itoa(yearHint)
	} else if m := usDateRegex.FindStringSubmatch(s); m != nil {
		month, day, year = m[1], m[2], m[3]
		if len(year) == 2 {
			year = "20" + year
		}
	} else if m := isoDateRegex.FindStringSubmatch(s); m != nil {
		year, month, day = m[1], m[2], m[3]
	} else {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}

	y, _ := strconv.Atoi(year)
	mo, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	if y < 1000 || y > 9999 || mo < 1 || mo > 12 || d < 1 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}

	date := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes 02/30 into March
	if date.Day() != d || int(date.Month()) != mo {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return date, nil
}

// NormalizeAmount strips currency symbols, thousands separators and
// whitespace. "(12.34)" and "-12.34" are negative.
func NormalizeAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	negative := false

	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = amountNoiseRegex.ReplaceAllString(s, "")
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}

	if !plainNumberRegex.MatchString(s) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if negative {
		amount = amount.Neg()
	}
	return amount, nil
}

// ResolveYear picks the year hint for a document from its first page: a
// "Period ... MM/DD/YYYY" phrase, else the first plausible year near the top
// of the page, else the current year.
func ResolveYear(firstPage string, now time.Time) int {
	if m := periodYearRegex.FindStringSubmatch(firstPage); m != nil {
		if year, err := strconv.Atoi(m[1]); err == nil {
			return year
		}
	}

	head := firstPage
	if runes := []rune(head); len(runes) > yearScanWindow {
		head = string(runes[:yearScanWindow])
	}
	if m := plausibleYearRegex.FindStringSubmatch(head); m != nil {
		year, _ := strconv.Atoi(m[1])
		return year
	}

	return now.Year()
}

// FormatDate renders a transaction date the way every output uses it.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
