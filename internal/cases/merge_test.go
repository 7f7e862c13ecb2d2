package cases

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claimy/claimy-admin/internal/models"
)

func TestMergeEmails(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		existing []models.Email
		incoming []models.Email
		want     []string
	}{
		{
			name:     "empty inputs",
			existing: nil,
			incoming: nil,
			want:     []string{},
		},
		{
			name: "local entries without thread id are kept",
			existing: []models.Email{
				{Subject: "a", SentAt: t0.Add(-2 * time.Hour)},
				{Subject: "b", SentAt: t0.Add(-time.Hour)},
			},
			incoming: []models.Email{{Subject: "c", SentAt: t0, ThreadID: "T1"}},
			want:     []string{"a", "b", "c"},
		},
		{
			name:     "incoming replaces same key",
			existing: []models.Email{{Subject: "local", SentAt: t0, ThreadID: "T1"}},
			incoming: []models.Email{{Subject: "remote", SentAt: t0.Add(400 * time.Millisecond), ThreadID: "T1"}},
			want:     []string{"remote"},
		},
		{
			name:     "same second in another thread is distinct",
			existing: []models.Email{{Subject: "x", SentAt: t0, ThreadID: "T1"}},
			incoming: []models.Email{{Subject: "y", SentAt: t0, ThreadID: "T2"}},
			want:     []string{"x", "y"},
		},
		{
			name: "result is sorted oldest first",
			existing: []models.Email{
				{Subject: "late", SentAt: t0.Add(time.Hour), ThreadID: "T1"},
			},
			incoming: []models.Email{
				{Subject: "early", SentAt: t0.Add(-time.Hour), ThreadID: "T1"},
				{Subject: "middle", SentAt: t0, ThreadID: "T1"},
			},
			want: []string{"early", "middle", "late"},
		},
		{
			name: "offsets compare as instants",
			existing: []models.Email{
				{Subject: "local", SentAt: t0, ThreadID: "T1"},
			},
			incoming: []models.Email{
				{Subject: "remote", SentAt: t0.In(time.FixedZone("EST", -5*3600)), ThreadID: "T1"},
			},
			want: []string{"remote"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged := MergeEmails(tt.existing, tt.incoming)
			subjects := make([]string, 0, len(merged))
			for _, email := range merged {
				subjects = append(subjects, email.Subject)
				assert.Equal(t, time.UTC, email.SentAt.Location())
			}
			assert.Equal(t, tt.want, subjects)
		})
	}
}

func TestMergeEmailsIsIdempotent(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	existing := []models.Email{
		{Subject: "a", SentAt: t0.Add(-time.Hour)},
		{Subject: "b", SentAt: t0, ThreadID: "T1"},
	}
	snapshot := []models.Email{
		{Subject: "b", SentAt: t0, ThreadID: "T1"},
		{Subject: "c", SentAt: t0.Add(time.Minute), ThreadID: "T1"},
	}

	once := MergeEmails(existing, snapshot)
	twice := MergeEmails(once, snapshot)
	require.Len(t, once, 3)
	assert.Equal(t, once, twice)
}
