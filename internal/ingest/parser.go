// Package ingest parses NinjaTrader backtest exports into domain records.
//
// The accepted format is the "Daily Performance" CSV section of an export:
// optional leading "# name=value" parameter lines, a header row of
// Date,Net Profit,Trades[,Winning Trades], then one row per trading day.
package ingest

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nullptr0807/runhub/internal/core"
)

// Export is the parsed content of an uploaded file.
type Export struct {
	Parameters  []core.Parameter
	Daily       []core.DailyPnL
	PeriodStart time.Time
	PeriodEnd   time.Time
}

var dateLayouts = []string{"2006-01-02", "1/2/2006"}

// Parse decodes an export payload. Rows are returned sorted by date; a
// duplicate date or unparseable row fails the whole file with the line number.
func Parse(data []byte) (*Export, error) {
	text := strings.TrimPrefix(string(data), "\ufeff")
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	export := &Export{}
	headerSeen := false
	hasWinners := false
	seen := make(map[string]int) // date -> line number

	for i, line := range lines {
		lineNo := i + 1
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "#") {
			if headerSeen {
				return nil, parseErr(lineNo, "parameter line after data rows")
			}
			name, value, ok := strings.Cut(strings.TrimSpace(strings.TrimPrefix(line, "#")), "=")
			if !ok || strings.TrimSpace(name) == "" {
				return nil, parseErr(lineNo, "malformed parameter line %q", line)
			}
			export.Parameters = append(export.Parameters, core.Parameter{
				Name:  strings.TrimSpace(name),
				Value: strings.TrimSpace(value),
			})
			continue
		}

		fields := splitRow(line)
		if !headerSeen {
			if err := checkHeader(fields); err != nil {
				return nil, parseErr(lineNo, "%v", err)
			}
			hasWinners = len(fields) == 4
			headerSeen = true
			continue
		}

		want := 3
		if hasWinners {
			want = 4
		}
		if len(fields) != want {
			return nil, parseErr(lineNo, "expected %d columns, got %d", want, len(fields))
		}

		day, err := parseDay(fields, hasWinners)
		if err != nil {
			return nil, parseErr(lineNo, "%v", err)
		}

		key := day.Date.Format("2006-01-02")
		if prev, dup := seen[key]; dup {
			return nil, parseErr(lineNo, "duplicate date %s (first at line %d)", key, prev)
		}
		seen[key] = lineNo
		export.Daily = append(export.Daily, day)
	}

	if !headerSeen {
		return nil, core.WrapError(core.ErrParseFailed, fmt.Errorf("no header row found"))
	}
	if len(export.Daily) == 0 {
		return nil, core.WrapError(core.ErrParseFailed, fmt.Errorf("no data rows"))
	}

	sort.Slice(export.Daily, func(i, j int) bool {
		return export.Daily[i].Date.Before(export.Daily[j].Date)
	})
	export.PeriodStart = export.Daily[0].Date
	export.PeriodEnd = export.Daily[len(export.Daily)-1].Date

	return export, nil
}

func parseErr(line int, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return core.WrapError(core.ErrParseFailed, fmt.Errorf("line %d: %s", line, msg))
}

// splitRow splits a CSV row, honoring quoted fields so currency values like
// "$1,234.56" survive their embedded comma.
func splitRow(line string) []string {
	var fields []string
	var b strings.Builder
	inQuotes := false

	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ',' && !inQuotes:
			fields = append(fields, strings.TrimSpace(b.String()))
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	fields = append(fields, strings.TrimSpace(b.String()))
	return fields
}

func checkHeader(fields []string) error {
	if len(fields) < 3 || len(fields) > 4 {
		return fmt.Errorf("expected header Date,Net Profit,Trades[,Winning Trades]")
	}
	norm := func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, " ", ""))
	}
	if norm(fields[0]) != "date" || norm(fields[1]) != "netprofit" || norm(fields[2]) != "trades" {
		return fmt.Errorf("unexpected header %q", strings.Join(fields, ","))
	}
	if len(fields) == 4 && norm(fields[3]) != "winningtrades" {
		return fmt.Errorf("unexpected header column %q", fields[3])
	}
	return nil
}

func parseDay(fields []string, hasWinners bool) (core.DailyPnL, error) {
	date, err := parseDate(fields[0])
	if err != nil {
		return core.DailyPnL{}, err
	}

	profit, err := ParseCurrency(fields[1])
	if err != nil {
		return core.DailyPnL{}, err
	}

	trades, err := strconv.Atoi(fields[2])
	if err != nil {
		return core.DailyPnL{}, fmt.Errorf("bad trade count %q", fields[2])
	}
	if trades < 0 {
		return core.DailyPnL{}, fmt.Errorf("negative trade count %d", trades)
	}

	day := core.DailyPnL{Date: date, NetProfit: profit, Trades: trades}

	if hasWinners {
		winners, err := strconv.Atoi(fields[3])
		if err != nil {
			return core.DailyPnL{}, fmt.Errorf("bad winning trade count %q", fields[3])
		}
		if winners < 0 || winners > trades {
			return core.DailyPnL{}, fmt.Errorf("winning trades %d out of range for %d trades", winners, trades)
		}
		day.WinningTrades = winners
	}

	return day, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("bad date %q", s)
}

// ParseCurrency parses profit values as NinjaTrader formats them:
// "$1,234.56", "-$12.00", "(1,234.56)" for losses, or a plain float.
func ParseCurrency(s string) (float64, error) {
	orig := s
	s = strings.TrimSpace(s)

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = s[1:]
	}
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad currency value %q", orig)
	}
	if negative {
		v = -v
	}
	return v, nil
}
