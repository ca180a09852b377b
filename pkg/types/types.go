package types

import (
	"image"
	"time"
)

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Center returns the normalized center of the box
func (b Box) Center() Point {
	return Point{X: b.X + b.W/2, Y: b.Y + b.H/2}
}

// Primary represents the primary subject (a face, for passport photos) detected in an image
type Primary struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
	Cx         float64 `json:"cx"`
	Cy         float64 `json:"cy"`
}

// AnalysisResult contains the complete analysis result from the vision model
type AnalysisResult struct {
	Primary     Primary  `json:"primary"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Point is a normalized position inside the rotated source image.
// (0.5, 0.5) is the center.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Centered is the default crop center.
var Centered = Point{X: 0.5, Y: 0.5}

// Area is a crop rectangle in rotated-source pixel space
type Area struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect converts the area to an image.Rectangle
func (a Area) Rect() image.Rectangle {
	return image.Rect(a.X, a.Y, a.X+a.Width, a.Y+a.Height)
}

// AspectRatio returns width/height of the area
func (a Area) AspectRatio() float64 {
	if a.Height == 0 {
		return 0
	}
	return float64(a.Width) / float64(a.Height)
}

// Transform holds the mutable zoom and rotation of an edit session
type Transform struct {
	Zoom     float64 `json:"zoom"`
	Rotation float64 `json:"rotation"` // degrees, clockwise
}

// Identity is the transform of a fresh session.
var Identity = Transform{Zoom: 1, Rotation: 0}

// Role tags which kind of profile owns a photo
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher:
		return true
	}
	return false
}

// ProfileRef identifies the profile that owns a photo
type ProfileRef struct {
	Role Role   `json:"role" validate:"required,oneof=student teacher"`
	ID   string `json:"id" validate:"required"`
}

// Profile holds the fields printed on a passport card.
type Profile struct {
	ID        string     `json:"id" firestore:"-" validate:"required"`
	Role      Role       `json:"role" firestore:"-" validate:"required,oneof=student teacher"`
	FirstName string     `json:"first_name" firestore:"firstName" validate:"required"`
	LastName  string     `json:"last_name" firestore:"lastName" validate:"required"`
	BirthDate *time.Time `json:"birth_date,omitempty" firestore:"birthDate,omitempty"`
	Gender    string     `json:"gender,omitempty" firestore:"gender,omitempty"`
	Status    string     `json:"status,omitempty" firestore:"status,omitempty"`
	PhotoURL  string     `json:"photo_url,omitempty" firestore:"photoUrl,omitempty"`
}

// Ref returns the profile's reference
func (p Profile) Ref() ProfileRef {
	return ProfileRef{Role: p.Role, ID: p.ID}
}

// FullName returns "First Last"
func (p Profile) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// Organization is the school context an editor works in.
type Organization struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Origin string `json:"origin" validate:"omitempty,url"`
}
