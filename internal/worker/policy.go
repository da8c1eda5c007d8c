// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package worker

import (
	"fmt"
	"strings"
)

// WritePolicy decides what Fetch does when storing a network response fails.
type WritePolicy int

const (
	// WriteIgnore logs the failure and still returns the response.
	WriteIgnore WritePolicy = iota
	// WriteFail discards the response and returns the error.
	WriteFail
)

func (p WritePolicy) String() string {
	switch p {
	case WriteIgnore:
		return "ignore"
	case WriteFail:
		return "fail"
	default:
		return fmt.Sprintf("WritePolicy(%d)", int(p))
	}
}

func ParseWritePolicy(s string) (WritePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ignore":
		return WriteIgnore, nil
	case "fail":
		return WriteFail, nil
	default:
		return WriteIgnore, fmt.Errorf("unknown write policy %q (want ignore or fail)", s)
	}
}
