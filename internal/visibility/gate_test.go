package visibility

import (
	"testing"
	"time"

	"github.com/example/roadside-dispatch/internal/models"
)

var gate = Gate{AgeThreshold: 10 * time.Minute, DistanceKm: 2}

func record(createdAgo time.Duration, now time.Time) models.EmergencyRequest {
	return models.EmergencyRequest{
		ID:        "e1",
		Status:    models.StatusWaiting,
		Loc:       models.Coord{Lat: 0, Lon: 0},
		CreatedAt: now.Add(-createdAgo),
	}
}

func TestAgedRecordVisibleRegardlessOfDistance(t *testing.T) {
	now := time.Now()
	rec := record(11*time.Minute, now)
	farAway := &models.Coord{Lat: 50, Lon: 50}
	if !gate.Visible(rec, farAway, now) {
		t.Fatalf("aged record should be visible to a distant observer")
	}
	if !gate.Visible(rec, nil, now) {
		t.Fatalf("aged record should be visible with unknown observer")
	}
}

func TestYoungRecordFailsClosedWithoutObserver(t *testing.T) {
	now := time.Now()
	rec := record(1*time.Minute, now)
	if gate.Visible(rec, nil, now) {
		t.Fatalf("young record must not be visible without observer coordinates")
	}
}

func TestYoungRecordVisibleWithinDistance(t *testing.T) {
	now := time.Now()
	rec := record(1*time.Minute, now)
	// ~1 km north
	near := &models.Coord{Lat: 0.009, Lon: 0}
	if !gate.Visible(rec, near, now) {
		t.Fatalf("record 1 km away should be visible")
	}
	// ~5 km north
	far := &models.Coord{Lat: 0.045, Lon: 0}
	if gate.Visible(rec, far, now) {
		t.Fatalf("record 5 km away should not be visible before the age threshold")
	}
}

func TestAgeExactlyAtThresholdNotYetReleased(t *testing.T) {
	now := time.Now()
	rec := record(10*time.Minute, now)
	if gate.Visible(rec, nil, now) {
		t.Fatalf("age must exceed the threshold, not merely reach it")
	}
}
