package cases

import (
	"sort"
	"time"

	"github.com/claimy/claimy-admin/internal/models"
)

// MergeEmails folds incoming thread messages into the local list. Entries
// are keyed by thread id and send time at second precision; an incoming entry
// replaces a local one with the same key. The result is sorted oldest first.
//
// Two messages of one thread sent within the same second share a key and the
// later one in the input wins.
func MergeEmails(existing, incoming []models.Email) []models.Email {
	merged := make([]models.Email, 0, len(existing)+len(incoming))
	index := make(map[string]int, len(existing)+len(incoming))

	put := func(email models.Email) {
		email.SentAt = email.SentAt.UTC()
		key := mergeKey(email)
		if i, ok := index[key]; ok {
			merged[i] = email
			return
		}
		index[key] = len(merged)
		merged = append(merged, email)
	}

	for _, email := range existing {
		put(email)
	}
	for _, email := range incoming {
		put(email)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].SentAt.Before(merged[j].SentAt)
	})
	return merged
}

func mergeKey(email models.Email) string {
	return email.ThreadID + "|" + email.SentAt.UTC().Truncate(time.Second).Format(time.RFC3339)
}
