package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/sakif/geopoint/internal/model"
)

func TestCreateLocation(t *testing.T) {
	s := newTestDB(t).Locations()

	loc := &model.Location{Name: "Wawel", Latitude: 50.0540, Longitude: 19.9354}
	if err := s.CreateLocation(context.Background(), loc); err != nil {
		t.Fatalf("CreateLocation() error = %v", err)
	}
	if loc.ID == "" {
		t.Error("CreateLocation() did not set ID")
	}
	if loc.CreatedAt.IsZero() {
		t.Error("CreateLocation() did not set CreatedAt")
	}

	list, err := s.ListLocations(context.Background())
	if err != nil {
		t.Fatalf("ListLocations() error = %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len = %d, want 1", len(list))
	}
	got := list[0]
	if got.ID != loc.ID || got.Name != "Wawel" || got.Latitude != 50.0540 || got.Longitude != 19.9354 {
		t.Errorf("stored location = %+v, want %+v", got, *loc)
	}
}

func TestListLocations_NewestFirst(t *testing.T) {
	s := newTestDB(t).Locations()
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	for i, name := range []string{"oldest", "middle", "newest"} {
		loc := &model.Location{Name: name, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := s.CreateLocation(context.Background(), loc); err != nil {
			t.Fatalf("CreateLocation(%s) error = %v", name, err)
		}
	}

	list, err := s.ListLocations(context.Background())
	if err != nil {
		t.Fatalf("ListLocations() error = %v", err)
	}

	want := []string{"newest", "middle", "oldest"}
	for i, name := range want {
		if list[i].Name != name {
			t.Errorf("list[%d].Name = %q, want %q", i, list[i].Name, name)
		}
	}
}
