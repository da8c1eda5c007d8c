// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/apex/log"
)

// filterRegex is the pattern used to parse filter expressions into key, operator, and target components.
// It matches: key + operator + target, where operator can be negated with !
var filterRegex = regexp.MustCompile(`^([a-z]+)(!?[=^~<>])(.*)$`)

// Filter represents a single parsed --filter expression including the key,
// operand, optional negation and target value.
type Filter struct {
	Key     string
	Negate  bool
	Operand string
	Target  string
}

// BuildFilters parses a filter specification string into a slice of Filter.
// Invalid specs are logged and skipped.
func BuildFilters(spec string) []Filter {
	//nolint:prealloc
	var filters []Filter

	if spec == "" {
		return filters
	}

	// Default delimiter is ",", allow an override.
	delim := ","
	if d, ok := os.LookupEnv("XXII_FILTER_DELIM"); ok && d != "" {
		delim = d
	}

	for _, filterSpec := range strings.Split(spec, delim) {
		parts := filterRegex.FindStringSubmatch(strings.TrimSpace(filterSpec))
		if parts == nil {
			log.Error("invalid filter: " + filterSpec)
			continue
		}

		negate := strings.HasPrefix(parts[2], "!")
		filters = append(filters, Filter{
			Key:     parts[1],
			Negate:  negate,
			Operand: strings.TrimPrefix(parts[2], "!"),
			Target:  parts[3],
		})
	}

	return filters
}

// FilterRows keeps the rows that satisfy every filter.
func FilterRows(rows []Row, filters []Filter) []Row {
	if len(filters) == 0 {
		return rows
	}

	out := rows[:0:0]
	for _, r := range rows {
		keep := true
		for _, f := range filters {
			if f.match(r) == f.Negate {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, r)
		}
	}
	return out
}

func (f Filter) match(r Row) bool {
	switch f.Key {
	case "status":
		return compareInt(r.Status, f)
	case "size":
		return compareInt(r.Size, f)
	case "key":
		return compareString(r.Key, f)
	case "type":
		return compareString(r.Type, f)
	default:
		log.Debugf("unknown filter key %s", f.Key)
		return false
	}
}

func compareString(value string, f Filter) bool {
	switch f.Operand {
	case "=":
		return value == f.Target
	case "^":
		return strings.HasPrefix(value, f.Target)
	case "~":
		return strings.Contains(strings.ToLower(value), strings.ToLower(f.Target))
	case "<":
		return value < f.Target
	case ">":
		return value > f.Target
	}
	return false
}

func compareInt(value int, f Filter) bool {
	target, err := strconv.Atoi(f.Target)
	if err != nil {
		return compareString(strconv.Itoa(value), f)
	}
	switch f.Operand {
	case "=":
		return value == target
	case "<":
		return value < target
	case ">":
		return value > target
	default:
		return compareString(strconv.Itoa(value), f)
	}
}
