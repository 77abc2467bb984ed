package sla

import (
	"testing"
	"time"

	"flowdesk/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int              { return &n }
func timePtr(t time.Time) *time.Time { return &t }

func TestComputeOpenRequest(t *testing.T) {
	created := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	due := created.Add(24 * time.Hour)

	tests := []struct {
		name    string
		elapsed time.Duration
		want    model.SLAStatus
	}{
		{"halfway is on track", 12 * time.Hour, model.SLAOnTrack},
		{"just under at-risk threshold", 17*time.Hour + 59*time.Minute, model.SLAOnTrack},
		{"exactly 75 percent is at risk", 18 * time.Hour, model.SLAAtRisk},
		{"exactly 100 percent is breached", 24 * time.Hour, model.SLABreached},
		{"past due is breached", 25 * time.Hour, model.SLABreached},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(Input{
				CreatedAt: created,
				SLAHours:  intPtr(24),
				DueDate:   &due,
				Now:       created.Add(tt.elapsed),
			})
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestComputeIsIdempotent(t *testing.T) {
	created := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	due := created.Add(24 * time.Hour)
	in := Input{
		CreatedAt: created,
		SLAHours:  intPtr(24),
		DueDate:   &due,
		Now:       created.Add(20 * time.Hour),
	}

	first := Compute(in)
	second := Compute(in)
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, *first, *second)
}

func TestComputeWindowFallsBackToDueDate(t *testing.T) {
	// No sla_hours: the window is created_at -> due_date.
	created := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	due := created.Add(10 * time.Hour)

	got := Compute(Input{CreatedAt: created, DueDate: &due, Now: created.Add(8 * time.Hour)})
	require.NotNil(t, got)
	assert.Equal(t, model.SLAAtRisk, *got) // 80% elapsed

	got = Compute(Input{CreatedAt: created, DueDate: &due, Now: created.Add(2 * time.Hour)})
	require.NotNil(t, got)
	assert.Equal(t, model.SLAOnTrack, *got)
}

func TestComputeCompleted(t *testing.T) {
	created := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	due := created.Add(24 * time.Hour)
	now := created.Add(48 * time.Hour)

	onTime := Compute(Input{
		CreatedAt:   created,
		DueDate:     &due,
		CompletedAt: timePtr(created.Add(20 * time.Hour)),
		Now:         now,
	})
	require.NotNil(t, onTime)
	assert.Equal(t, model.SLACompleted, *onTime)

	late := Compute(Input{
		CreatedAt:   created,
		DueDate:     &due,
		CompletedAt: timePtr(created.Add(30 * time.Hour)),
		Now:         now,
	})
	require.NotNil(t, late)
	assert.Equal(t, model.SLABreached, *late)

	// Completion exactly at the due date is not late.
	boundary := Compute(Input{
		CreatedAt:   created,
		DueDate:     &due,
		CompletedAt: timePtr(due),
		Now:         now,
	})
	require.NotNil(t, boundary)
	assert.Equal(t, model.SLACompleted, *boundary)
}

func TestComputeNoSLA(t *testing.T) {
	created := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	got := Compute(Input{CreatedAt: created, Now: created.Add(100 * time.Hour)})
	assert.Nil(t, got)

	// Completed without a due date: completed, never breached.
	done := Compute(Input{
		CreatedAt:   created,
		CompletedAt: timePtr(created.Add(100 * time.Hour)),
		Now:         created.Add(200 * time.Hour),
	})
	require.NotNil(t, done)
	assert.Equal(t, model.SLACompleted, *done)
}

func TestForRequest(t *testing.T) {
	created := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	due := created.Add(24 * time.Hour)
	req := &model.Request{
		CreatedAt: created,
		DueDate:   &due,
		SLAHours:  intPtr(24),
	}

	got := ForRequest(req, created.Add(12*time.Hour))
	require.NotNil(t, got)
	assert.Equal(t, model.SLAOnTrack, *got)
}
