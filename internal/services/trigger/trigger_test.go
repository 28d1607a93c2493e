package trigger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"incident-worker-go/internal/models"
)

var labels = []string{"vehicle collision", "person fall", "accident", "traffic accident"}

func det(label string, conf float64) models.Detection {
	return models.Detection{Label: label, Confidence: conf, X: 1, Y: 2, Width: 3, Height: 4}
}

func TestEvaluate_IgnoresNonAccidentLabels(t *testing.T) {
	tr := New(labels, 5*time.Second)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	_, ok := tr.Evaluate("cam1", nil, now)
	assert.False(t, ok)

	_, ok = tr.Evaluate("cam1", []models.Detection{det("car", 0.99), det("person", 0.9)}, now)
	assert.False(t, ok)

	_, seen := tr.LastIncident("cam1")
	assert.False(t, seen, "non-accident frames must not touch debounce state")
}

func TestEvaluate_PicksMostConfidentAccident(t *testing.T) {
	tr := New(labels, 5*time.Second)
	now := time.Now()

	c, ok := tr.Evaluate("cam1", []models.Detection{
		det("car", 0.99),
		det("accident", 0.76),
		det("vehicle collision", 0.91),
		det("person fall", 0.80),
	}, now)
	require.True(t, ok)
	assert.Equal(t, "vehicle collision", c.Detection.Label)
	assert.Equal(t, models.SeverityHigh, c.Severity)
	assert.Equal(t, "cam1", c.CameraID)
	assert.Equal(t, now, c.TriggeredAt)
}

func TestEvaluate_TiesKeepFirstSeen(t *testing.T) {
	tr := New(labels, 5*time.Second)

	c, ok := tr.Evaluate("cam1", []models.Detection{
		det("person fall", 0.8),
		det("accident", 0.8),
	}, time.Now())
	require.True(t, ok)
	assert.Equal(t, "person fall", c.Detection.Label)
}

func TestEvaluate_Debounce(t *testing.T) {
	tr := New(labels, 5*time.Second)
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	accident := []models.Detection{det("accident", 0.9)}

	_, ok := tr.Evaluate("cam1", accident, t0)
	require.True(t, ok)

	_, ok = tr.Evaluate("cam1", accident, t0.Add(time.Second))
	assert.False(t, ok)

	// the window is inclusive
	_, ok = tr.Evaluate("cam1", accident, t0.Add(5*time.Second))
	assert.False(t, ok)

	// suppressed evaluations do not extend the window
	last, _ := tr.LastIncident("cam1")
	assert.Equal(t, t0, last)

	_, ok = tr.Evaluate("cam1", accident, t0.Add(5*time.Second+time.Millisecond))
	assert.True(t, ok)
}

func TestEvaluate_DebounceIsPerCamera(t *testing.T) {
	tr := New(labels, 5*time.Second)
	now := time.Now()
	accident := []models.Detection{det("traffic accident", 0.72)}

	_, ok := tr.Evaluate("cam1", accident, now)
	require.True(t, ok)

	c, ok := tr.Evaluate("cam2", accident, now)
	require.True(t, ok)
	assert.Equal(t, models.SeverityMedium, c.Severity)
}

func TestEvaluate_AtMostOneIncidentPerWindow(t *testing.T) {
	tr := New(labels, 5*time.Second)
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	accident := []models.Detection{det("accident", 0.9)}

	var accepted []time.Time
	// one accident detection every 250ms for 20s
	for i := 0; i < 80; i++ {
		now := t0.Add(time.Duration(i) * 250 * time.Millisecond)
		if c, ok := tr.Evaluate("cam1", accident, now); ok {
			accepted = append(accepted, c.TriggeredAt)
		}
	}

	require.NotEmpty(t, accepted)
	for i := 1; i < len(accepted); i++ {
		assert.Greater(t, accepted[i].Sub(accepted[i-1]), 5*time.Second)
	}
	assert.Len(t, accepted, 4) // t=0, 5.25, 10.5, 15.75
}
