package record

import "context"

// LeadFilter and friends keep list() narrow; empty filters list all.
type LeadFilter struct {
	Status string
}

type ServiceFilter struct {
	ActiveOnly bool
}

type AppointmentFilter struct {
	LeadID string
	Date   string
}

type BrandFilter struct {
	ActiveOnly bool
}

// Store is the capability surface the node executors depend on. Reads
// of missing rows yield contract.ErrNotFound; updates of missing rows
// fail the same way.
type Store interface {
	InsertLead(ctx context.Context, lead *Lead) error
	UpdateLead(ctx context.Context, id string, fields map[string]any) error
	GetLead(ctx context.Context, id string) (*Lead, error)
	ListLeads(ctx context.Context, f LeadFilter) ([]Lead, error)

	InsertPet(ctx context.Context, pet *Pet) error
	UpdatePet(ctx context.Context, id string, fields map[string]any) error
	GetPet(ctx context.Context, id string) (*Pet, error)
	ListPets(ctx context.Context, leadID string) ([]Pet, error)

	InsertService(ctx context.Context, svc *Service) error
	UpdateService(ctx context.Context, id string, fields map[string]any) error
	GetService(ctx context.Context, id string) (*Service, error)
	ListServices(ctx context.Context, f ServiceFilter) ([]Service, error)

	InsertAppointment(ctx context.Context, appt *Appointment) error
	UpdateAppointment(ctx context.Context, id string, fields map[string]any) error
	GetAppointment(ctx context.Context, id string) (*Appointment, error)
	ListAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, error)

	InsertBrand(ctx context.Context, brand *Brand) error
	UpdateBrand(ctx context.Context, id string, fields map[string]any) error
	GetBrand(ctx context.Context, id string) (*Brand, error)
	ListBrands(ctx context.Context, f BrandFilter) ([]Brand, error)
}
