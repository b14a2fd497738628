package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Survey is a field engineering survey of a building project.
type Survey struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Client        string    `gorm:"size:255" json:"client"`
	ProjectName   string    `gorm:"size:255" json:"project_name"`
	Towers        int       `json:"towers"`
	Floors        int       `json:"floors"`
	UnitsPerFloor int       `json:"units_per_floor"`
	TotalUnits    int       `json:"total_units"`
	LengthM       float64   `json:"length_m"`
	WidthM        float64   `json:"width_m"`
	// Amenities is a JSON array of strings.
	Amenities   string `gorm:"type:text" json:"amenities"`
	CablingCalc string `gorm:"type:text" json:"cabling_calc"`
	Notes       string `gorm:"type:text" json:"notes"`
}

// Normalize upper-cases the project name, derives TotalUnits and
// defaults Amenities to an empty list.
func (s *Survey) Normalize() {
	s.ProjectName = upper(s.ProjectName)
	s.TotalUnits = s.Towers * s.Floors * s.UnitsPerFloor
	if strings.TrimSpace(s.Amenities) == "" {
		s.Amenities = "[]"
	}
}

// AmenityList decodes Amenities. A malformed payload yields an empty list
// together with the decode error.
func (s *Survey) AmenityList() ([]string, error) {
	if strings.TrimSpace(s.Amenities) == "" {
		return []string{}, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s.Amenities), &out); err != nil {
		return []string{}, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// Area in square meters.
func (s *Survey) Area() float64 {
	return s.LengthM * s.WidthM
}
