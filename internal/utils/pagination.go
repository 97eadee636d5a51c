// Package utils holds small helpers shared by the HTTP and service layers.
package utils

import (
	"strconv"
	"strings"
)

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

// ParsePage reads raw query values. A missing or malformed number means page
// 1; a missing or malformed size means defSize. Size is then clamped to
// [1, maxSize].
func ParsePage(rawNumber, rawSize string, defSize, maxSize int) Page {
	p := Page{Number: atoi(rawNumber, 1), Size: atoi(rawSize, defSize)}
	p.Number = max(p.Number, 1)
	p.Size = min(max(p.Size, 1), max(maxSize, 1))
	return p
}

// Offset is the number of rows before the page.
func (p Page) Offset() int { return (p.Number - 1) * p.Size }

// Pages returns how many pages are needed to hold total rows.
func (p Page) Pages(total int64) int {
	if p.Size <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(p.Size) - 1) / int64(p.Size))
}

// HasNext reports whether rows remain after this page.
func (p Page) HasNext(total int64) bool { return p.Number < p.Pages(total) }

func atoi(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}
