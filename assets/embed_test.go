package assets

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/classfeedback/feedback-bot/internal/domain"
)

func TestEmbeddedScheduleMatchesDefault(t *testing.T) {
	got, err := Schedule("")
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if want := domain.DefaultSchedule(); !reflect.DeepEqual(got, want) {
		t.Fatalf("embedded schedule = %v, want %v", got, want)
	}
}

func TestScheduleFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	if err := os.WriteFile(path, []byte("entries:\n  - {group: weekend, weekday: 6, end: \"12:30\"}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := Schedule(path)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	want := []domain.ScheduleEntry{{Group: domain.GroupWeekend, Weekday: 6, EndMinutes: 12*60 + 30}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	if _, err := Schedule(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
