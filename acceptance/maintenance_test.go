package acceptance

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/semanticallynull/fleetengine-backend/maintenance"
	"github.com/semanticallynull/fleetengine-backend/ride"
)

func maintenanceBody(date time.Time) map[string]interface{} {
	return map[string]interface{}{
		"date":        date.Format(time.RFC3339),
		"category":    "inspection",
		"description": "Quarterly inspection",
		"technician":  "tech-1",
		"cost":        25.0,
	}
}

func newTestScheduler(ts *TestServer) *maintenance.Scheduler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return maintenance.NewScheduler(ts.MaintenanceRepo, time.Hour, logger, prometheus.NewRegistry())
}

func TestScheduleMaintenance_SetsDateWithoutFlippingStatus(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	ts.CreateTestBike(t, "BIKE-001", "available", 8.99, 38.80)

	due := time.Now().Add(7 * 24 * time.Hour)
	w := ts.POST("/bikes/BIKE-001/maintenance", maintenanceBody(due), map[string]string{"X-User-ID": "ops-1"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	b := ts.GetBikeRow(t, "BIKE-001")
	if string(b.Status) != "available" {
		t.Errorf("scheduling must not flip status, got %s", b.Status)
	}
	if !b.NextMaintenanceAt.Valid {
		t.Error("expected next_maintenance_at to be set")
	}
}

func TestScheduleMaintenance_ConflictWhenAlreadyUnderMaintenance(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	ts.CreateTestBike(t, "BIKE-001", "under_maintenance", 8.99, 38.80)

	w := ts.POST("/bikes/BIKE-001/maintenance", maintenanceBody(time.Now()), map[string]string{"X-User-ID": "ops-1"})
	if w.Code != http.StatusConflict {
		t.Errorf("expected status %d, got %d: %s", http.StatusConflict, w.Code, w.Body.String())
	}
}

func TestScheduleMaintenance_InvalidStateWhenInUse(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	ts.CreateTestBike(t, "BIKE-001", "in_use", 8.99, 38.80)

	w := ts.POST("/bikes/BIKE-001/maintenance", maintenanceBody(time.Now()), map[string]string{"X-User-ID": "ops-1"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected status %d, got %d: %s", http.StatusUnprocessableEntity, w.Code, w.Body.String())
	}
}

func TestCompleteMaintenance_ReturnsBikeToService(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	ts.CreateTestBike(t, "BIKE-001", "under_maintenance", 8.99, 38.80)
	due := time.Now().Add(-time.Hour).Truncate(time.Second).UTC()
	ts.SetNextMaintenance(t, "BIKE-001", due)

	w := ts.POST("/bikes/BIKE-001/maintenance/complete", nil, map[string]string{"X-User-ID": "ops-1"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	b := ts.GetBikeRow(t, "BIKE-001")
	if string(b.Status) != "available" {
		t.Errorf("expected available, got %s", b.Status)
	}
	if b.NextMaintenanceAt.Valid {
		t.Error("expected next_maintenance_at to be cleared")
	}
	if !b.LastMaintenanceAt.Valid || !b.LastMaintenanceAt.Time.UTC().Equal(due) {
		t.Errorf("expected last_maintenance_at = %v, got %v", due, b.LastMaintenanceAt)
	}
}

func TestCompleteMaintenance_KeepsLastDateWhenNoneScheduled(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	ts.CreateTestBike(t, "BIKE-001", "under_maintenance", 8.99, 38.80)
	prev := time.Now().Add(-30 * 24 * time.Hour).Truncate(time.Second).UTC()
	ts.DB.MustExec(`UPDATE bikes SET last_maintenance_at = $1 WHERE label = $2`, prev, "BIKE-001")

	// No next-maintenance date on the bike; completion must not erase the
	// previous completion date.
	w := ts.POST("/bikes/BIKE-001/maintenance/complete", nil, map[string]string{"X-User-ID": "ops-1"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	b := ts.GetBikeRow(t, "BIKE-001")
	if string(b.Status) != "available" {
		t.Errorf("expected available, got %s", b.Status)
	}
	if !b.LastMaintenanceAt.Valid || !b.LastMaintenanceAt.Time.UTC().Equal(prev) {
		t.Errorf("expected last_maintenance_at preserved as %v, got %v", prev, b.LastMaintenanceAt)
	}
}

func TestCompleteMaintenance_InvalidStateLeavesFieldsUnchanged(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	ts.CreateTestBike(t, "BIKE-001", "available", 8.99, 38.80)
	due := time.Now().Add(24 * time.Hour).Truncate(time.Second).UTC()
	ts.SetNextMaintenance(t, "BIKE-001", due)

	w := ts.POST("/bikes/BIKE-001/maintenance/complete", nil, map[string]string{"X-User-ID": "ops-1"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected status %d, got %d: %s", http.StatusUnprocessableEntity, w.Code, w.Body.String())
	}

	b := ts.GetBikeRow(t, "BIKE-001")
	if string(b.Status) != "available" {
		t.Errorf("status must be unchanged, got %s", b.Status)
	}
	if !b.NextMaintenanceAt.Valid || !b.NextMaintenanceAt.Time.UTC().Equal(due) {
		t.Errorf("next_maintenance_at must be unchanged, got %v", b.NextMaintenanceAt)
	}
	if b.LastMaintenanceAt.Valid {
		t.Error("last_maintenance_at must be unchanged")
	}
}

func TestRemoveMaintenanceRecord_PopsLastEntryAndReverts(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	ts.CreateTestBike(t, "BIKE-001", "available", 8.99, 38.80)

	w := ts.POST("/bikes/BIKE-001/maintenance", maintenanceBody(time.Now().Add(-time.Hour)), map[string]string{"X-User-ID": "ops-1"})
	if w.Code != http.StatusOK {
		t.Fatalf("failed to schedule maintenance: %d %s", w.Code, w.Body.String())
	}

	// Sweep flips the overdue bike into maintenance
	newTestScheduler(ts).Sweep(context.Background())
	if b := ts.GetBikeRow(t, "BIKE-001"); string(b.Status) != "under_maintenance" {
		t.Fatalf("expected sweep to flip bike, got %s", b.Status)
	}

	w = ts.DELETE("/bikes/BIKE-001/maintenance/last", map[string]string{"X-User-ID": "ops-1"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	b := ts.GetBikeRow(t, "BIKE-001")
	if string(b.Status) != "available" {
		t.Errorf("expected bike reverted to available, got %s", b.Status)
	}

	var n int
	ts.DB.Get(&n, `SELECT count(*) FROM maintenance_records WHERE bike_id = $1`, b.ID)
	if n != 0 {
		t.Errorf("expected record removed, %d remain", n)
	}
}

func TestSweep_FlipsOverdueBikesOnly(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	overdue := time.Now().Add(-time.Hour)

	ts.CreateTestBike(t, "BIKE-001", "available", 8.99, 38.80)
	ts.SetNextMaintenance(t, "BIKE-001", overdue)
	ts.CreateTestBike(t, "BIKE-002", "available", 8.99, 38.80)
	ts.SetNextMaintenance(t, "BIKE-002", overdue)
	ts.CreateTestBike(t, "BIKE-003", "under_maintenance", 8.99, 38.80)
	ts.SetNextMaintenance(t, "BIKE-003", overdue)

	newTestScheduler(ts).Sweep(context.Background())

	for _, label := range []string{"BIKE-001", "BIKE-002", "BIKE-003"} {
		if b := ts.GetBikeRow(t, label); string(b.Status) != "under_maintenance" {
			t.Errorf("expected %s under_maintenance, got %s", label, b.Status)
		}
	}

	// Exactly two transitions: the third bike was already under maintenance,
	// so re-running the sweep must also change nothing.
	newTestScheduler(ts).Sweep(context.Background())
	var n int
	ts.DB.Get(&n, `SELECT count(*) FROM bikes WHERE status = 'under_maintenance'`)
	if n != 3 {
		t.Errorf("expected 3 bikes under maintenance, got %d", n)
	}
}

func TestSweep_DefersBikeInUse(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	ts.CreateTestBike(t, "BIKE-001", "available", 8.99, 38.80)

	w := ts.POST("/ride/start", map[string]string{"bikeId": "BIKE-001"}, map[string]string{"X-User-ID": "user-1"})
	if w.Code != http.StatusOK {
		t.Fatalf("failed to start ride: %d", w.Code)
	}
	var started ride.Ride
	json.Unmarshal(w.Body.Bytes(), &started)

	// Maintenance date lapses while the bike is on a trip
	ts.SetNextMaintenance(t, "BIKE-001", time.Now().Add(-time.Hour))

	newTestScheduler(ts).Sweep(context.Background())
	if b := ts.GetBikeRow(t, "BIKE-001"); string(b.Status) != "in_use" {
		t.Fatalf("sweep must not pre-empt an open ride, got %s", b.Status)
	}

	w = ts.POST("/ride/end", map[string]string{"rideId": started.ID.String()}, map[string]string{"X-User-ID": "user-1"})
	if w.Code != http.StatusOK {
		t.Fatalf("failed to end ride: %d %s", w.Code, w.Body.String())
	}

	// A later sweep picks the bike up once the ride has settled
	newTestScheduler(ts).Sweep(context.Background())
	if b := ts.GetBikeRow(t, "BIKE-001"); string(b.Status) != "under_maintenance" {
		t.Errorf("expected bike flipped after ride ended, got %s", b.Status)
	}
}
