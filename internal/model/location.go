package model

import "time"

// Location is a named geographic point. It is immutable once created.
//
//	loc := Location{Name: "Wawel", Latitude: 50.054, Longitude: 19.935}
//	json.Marshal(loc) → {"id":"...","name":"Wawel","latitude":50.054,...}
type Location struct {
	ID        string    `json:"id"        db:"id"`
	Name      string    `json:"name"      db:"name"`
	Latitude  float64   `json:"latitude"  db:"latitude"`
	Longitude float64   `json:"longitude" db:"longitude"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
