package tle

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"
)

// Parse reads 3-line NORAD TLE text from r and returns the element sets.
// Malformed entries are skipped with a warning log.
func Parse(r io.Reader, logger *slog.Logger) ([]ElementSet, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}

	var sets []ElementSet
	for i := 0; i+2 < len(lines); {
		name, line1, line2 := lines[i], lines[i+1], lines[i+2]

		if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
			// Resynchronise on the next line.
			logger.Warn("skipping malformed TLE entry", "line_index", i, "name", name)
			i++
			continue
		}
		i += 3

		set, err := parseEntry(name, line1, line2)
		if err != nil {
			logger.Warn("skipping TLE entry", "name", strings.TrimSpace(name), "error", err)
			continue
		}
		if set.Bstar, err = parseBstar(line1); err != nil {
			logger.Warn("unreadable B* term, assuming zero drag", "catalog_id", set.CatalogID, "error", err)
		}
		sets = append(sets, set)
	}

	return sets, nil
}

func parseEntry(name, line1, line2 string) (ElementSet, error) {
	if len(line1) < 32 {
		return ElementSet{}, fmt.Errorf("line1 too short (%d chars)", len(line1))
	}

	// Catalog number occupies columns 3-7. Round-tripping through an int
	// drops the zero padding so ids compare equal to SATCAT values.
	id, err := ParseCatalogNumber(line1[2:7])
	if err != nil {
		return ElementSet{}, err
	}

	epoch, err := parseEpoch(strings.TrimSpace(line1[18:32]))
	if err != nil {
		return ElementSet{}, err
	}

	return ElementSet{
		CatalogID: strconv.Itoa(id),
		Name:      strings.TrimSpace(name),
		Epoch:     epoch,
		Line1:     line1,
		Line2:     line2,
	}, nil
}

// alpha5Letters maps the leading letter of an Alpha-5 catalog number to
// its value. I and O are not used.
const alpha5Letters = "ABCDEFGHJKLMNPQRSTUVWXYZ"

// ParseCatalogNumber decodes a catalog number field, including the Alpha-5
// form where a leading letter stands for 10-33: "A0001" is 100001.
func ParseCatalogNumber(field string) (int, error) {
	f := strings.TrimSpace(field)
	if f == "" {
		return 0, fmt.Errorf("empty catalog number")
	}

	var prefix int
	if c := f[0]; c < '0' || c > '9' {
		i := strings.IndexByte(alpha5Letters, c&^0x20)
		if i < 0 || len(f) != 5 {
			return 0, fmt.Errorf("invalid catalog number %q", field)
		}
		prefix = (i + 10) * 10000
		f = f[1:]
	}

	n, err := strconv.Atoi(f)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid catalog number %q", field)
	}
	return prefix + n, nil
}

// parseEpoch converts a TLE epoch in YYDDD.DDDDDDDD form to UTC.
// Years 57-99 are 19xx, 00-56 are 20xx.
func parseEpoch(s string) (time.Time, error) {
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("epoch string too short: %q", s)
	}

	year, err := strconv.Atoi(s[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch year %q: %w", s[:2], err)
	}
	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}

	dayOfYear, err := strconv.ParseFloat(s[2:], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch day %q: %w", s[2:], err)
	}

	// Day 1 is January 1st.
	start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return start.Add(time.Duration((dayOfYear - 1) * float64(24*time.Hour))), nil
}

// parseBstar reads the B* drag term from line 1 columns 54-61, written in
// the TLE implied-decimal form: " 10270-3" is 0.10270e-3.
func parseBstar(line1 string) (float64, error) {
	if len(line1) < 61 {
		return 0, fmt.Errorf("line1 too short for B* (%d chars)", len(line1))
	}

	field := strings.TrimSpace(line1[53:61])
	if field == "" {
		return 0, nil
	}

	sign := 1.0
	switch field[0] {
	case '-':
		sign = -1
		field = field[1:]
	case '+':
		field = field[1:]
	}
	if len(field) < 3 {
		return 0, fmt.Errorf("malformed B* field %q", line1[53:61])
	}

	mantissa, err := strconv.ParseFloat("0."+strings.TrimSpace(field[:len(field)-2]), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid B* mantissa %q: %w", field, err)
	}
	exp, err := strconv.Atoi(field[len(field)-2:])
	if err != nil {
		return 0, fmt.Errorf("invalid B* exponent %q: %w", field, err)
	}

	return sign * mantissa * math.Pow10(exp), nil
}
