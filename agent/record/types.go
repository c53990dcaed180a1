// Package record is the tabular record-store collaborator: five logical
// tables (leads, pets, services, appointments, brands) with insert,
// update, get, and list operations each, backed by Postgres through bun.
package record

import (
	"time"

	"github.com/uptrace/bun"
)

type Lead struct {
	bun.BaseModel `bun:"table:leads"`

	LeadID       string    `bun:"lead_id,pk" json:"lead_id"`
	CustomerName string    `bun:"customer_name" json:"customer_name"`
	Phone        string    `bun:"phone" json:"phone"`
	Email        string    `bun:"email" json:"email"`
	Address      string    `bun:"address" json:"address"`
	Status       string    `bun:"status" json:"status"`
	Source       string    `bun:"source" json:"source"`
	CreatedDate  time.Time `bun:"created_date" json:"created_date"`
	Notes        string    `bun:"notes" json:"notes"`
}

type Pet struct {
	bun.BaseModel `bun:"table:pets"`

	PetID         string  `bun:"pet_id,pk" json:"pet_id"`
	LeadID        string  `bun:"lead_id" json:"lead_id"`
	Status        string  `bun:"status" json:"status"`
	PetName       string  `bun:"pet_name" json:"pet_name"`
	Species       string  `bun:"species" json:"species"`
	Breed         string  `bun:"breed" json:"breed"`
	WeightKg      float64 `bun:"weight_kg" json:"weight_kg"`
	AgeYears      int     `bun:"age_years" json:"age_years"`
	CoatCondition string  `bun:"coat_condition" json:"coat_condition"`
	Notes         string  `bun:"notes" json:"notes"`
}

type Service struct {
	bun.BaseModel `bun:"table:services"`

	ServiceID       string  `bun:"service_id,pk" json:"service_id"`
	ServiceName     string  `bun:"service_name" json:"service_name"`
	Description     string  `bun:"description" json:"description"`
	Price           float64 `bun:"price" json:"price"`
	DurationMinutes int     `bun:"duration_minutes" json:"duration_minutes"`
	Category        string  `bun:"category" json:"category"`
	IsActive        bool    `bun:"is_active" json:"is_active"`
}

type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	AppointmentID   string  `bun:"appointment_id,pk" json:"appointment_id"`
	LeadID          string  `bun:"lead_id" json:"lead_id"`
	PetID           string  `bun:"pet_id" json:"pet_id"`
	ServiceID       string  `bun:"service_id" json:"service_id"`
	AppointmentDate string  `bun:"appointment_date" json:"appointment_date"`
	AppointmentTime string  `bun:"appointment_time" json:"appointment_time"`
	Status          string  `bun:"status" json:"status"`
	GroomerName     string  `bun:"groomer_name" json:"groomer_name"`
	Notes           string  `bun:"notes" json:"notes"`
	TotalPrice      float64 `bun:"total_price" json:"total_price"`
}

type Brand struct {
	bun.BaseModel `bun:"table:brands"`

	BrandID      string `bun:"brand_id,pk" json:"brand_id"`
	BrandName    string `bun:"brand_name" json:"brand_name"`
	Description  string `bun:"description" json:"description"`
	Website      string `bun:"website" json:"website"`
	ContactEmail string `bun:"contact_email" json:"contact_email"`
	IsActive     bool   `bun:"is_active" json:"is_active"`
}
