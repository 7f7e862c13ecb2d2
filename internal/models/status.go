package models

import (
	"sort"
	"strings"
	"unicode"
)

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusInReview Status = "IN_REVIEW"
	StatusNeedInfo Status = "NEED_INFO"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// CanonicalStatuses lists the statuses admins work with, in queue order.
var CanonicalStatuses = []Status{
	StatusPending,
	StatusInReview,
	StatusNeedInfo,
	StatusApproved,
	StatusRejected,
}

// statusByKey is keyed by folded spelling, see foldStatus.
var statusByKey = map[string]Status{
	"":             StatusPending,
	"pending":      StatusPending,
	"new":          StatusPending,
	"inreview":     StatusInReview,
	"sent":         StatusInReview,
	"waitingreply": StatusInReview,
	"needinfo":     StatusNeedInfo,
	"needmoreinfo": StatusNeedInfo,
	"approved":     StatusApproved,
	"rejected":     StatusRejected,
}

// NormalizeStatus maps any stored status spelling to its canonical form.
// Unknown values come back upper-snake-cased. Applying it twice yields the
// same result as applying it once.
func NormalizeStatus(raw string) Status {
	if status, ok := statusByKey[foldStatus(raw)]; ok {
		return status
	}
	return Status(upperSnake(raw))
}

// IsCanonical reports whether s is one of the five workflow statuses.
func (s Status) IsCanonical() bool {
	for _, c := range CanonicalStatuses {
		if s == c {
			return true
		}
	}
	return false
}

// StatusKeys returns the folded spellings of every stored status that
// normalizes to the same status as raw, sorted. Stored values are matched by
// folding them the same way: lower case, without '_', '-', '.' or spaces.
func StatusKeys(raw string) []string {
	status := NormalizeStatus(raw)
	var keys []string
	for key, s := range statusByKey {
		if s == status {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		keys = append(keys, foldStatus(raw))
	}
	sort.Strings(keys)
	return keys
}

func foldStatus(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if isStatusSeparator(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(unicode.ToUpper(r)))
	}
	return b.String()
}

func upperSnake(raw string) string {
	var b strings.Builder
	prev := rune(0)
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case isStatusSeparator(r):
			r = '_'
			if prev == '_' || prev == 0 {
				continue
			}
		case unicode.IsUpper(r) && unicode.IsLower(prev):
			b.WriteRune('_')
		}
		b.WriteRune(unicode.ToUpper(r))
		prev = r
	}
	return strings.TrimRight(b.String(), "_")
}

func isStatusSeparator(r rune) bool {
	return r == '_' || r == '-' || r == '.' || unicode.IsSpace(r)
}
