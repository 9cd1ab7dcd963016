package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const mb = 1024 * 1024

func TestSegmentPlanUnderLimit(t *testing.T) {
	// A file exactly at the size bound stays whole.
	count, _ := segmentPlan(25*mb, 25*mb, 500, 600)
	assert.Equal(t, 1, count)
}

func TestSegmentPlanJustOverLimit(t *testing.T) {
	count, _ := segmentPlan(25*mb+1, 25*mb, 1500, 600)
	assert.GreaterOrEqual(t, count, 2)
}

func TestSegmentPlanLargeFile(t *testing.T) {
	// 80 MB at a 25 MB cap needs at least 4 segments.
	count, segDur := segmentPlan(80*mb, 25*mb, 2700, 600)
	assert.GreaterOrEqual(t, count, 4)
	assert.LessOrEqual(t, segDur, 600.0)
}

func TestSegmentPlanDurationCapWins(t *testing.T) {
	// Small file, very long duration: the duration cap forces more
	// segments than the size bound would.
	count, segDur := segmentPlan(30*mb, 25*mb, 7200, 600)
	assert.GreaterOrEqual(t, count, 12)
	assert.LessOrEqual(t, segDur, 600.0)
}

func TestSegmentPlanCoversWholeDuration(t *testing.T) {
	count, segDur := segmentPlan(80*mb, 25*mb, 2700, 600)
	assert.InDelta(t, 2700, float64(count)*segDur, 0.001)
}
