package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/pawdesk/groomflow/agent/contract"
)

type Config struct {
	DSN     string        `envconfig:"DSN" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

// PostgresStore implements Store on Postgres via bun.
type PostgresStore struct {
	db *bun.DB
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(cfg Config) (*PostgresStore, error) {
	dsn := cfg.DSN
	if dsn == "" {
		return nil, errors.New("record store dsn is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithTimeout(timeout),
	))
	return &PostgresStore{db: bun.NewDB(sqldb, pgdialect.New())}, nil
}

// NewPostgresStoreFromDB wraps an existing bun handle; used in tests.
func NewPostgresStoreFromDB(db *bun.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var updatableColumns = map[string]map[string]bool{
	"leads": {
		"customer_name": true, "phone": true, "email": true, "address": true,
		"status": true, "source": true, "notes": true,
	},
	"pets": {
		"lead_id": true, "status": true, "pet_name": true, "species": true,
		"breed": true, "weight_kg": true, "age_years": true,
		"coat_condition": true, "notes": true,
	},
	"services": {
		"service_name": true, "description": true, "price": true,
		"duration_minutes": true, "category": true, "is_active": true,
	},
	"appointments": {
		"service_id": true, "appointment_date": true, "appointment_time": true,
		"status": true, "groomer_name": true, "notes": true, "total_price": true,
	},
	"brands": {
		"brand_name": true, "description": true, "website": true,
		"contact_email": true, "is_active": true,
	},
}

func (s *PostgresStore) insert(ctx context.Context, model any) error {
	if _, err := s.db.NewInsert().Model(model).Exec(ctx); err != nil {
		return fmt.Errorf("%w: insert: %v", contractx.ErrUpstreamUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) update(ctx context.Context, table, pkCol, id string, fields map[string]any, model any) error {
	if len(fields) == 0 {
		return fmt.Errorf("%w: no fields to update", contractx.ErrValidation)
	}
	allowed := updatableColumns[table]
	cols := make([]string, 0, len(fields))
	for col := range fields {
		if !allowed[col] {
			return fmt.Errorf("%w: unknown column %q for table %s", contractx.ErrValidation, col, table)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	q := s.db.NewUpdate().Model(model).Where("? = ?", bun.Ident(pkCol), id)
	for _, col := range cols {
		q = q.Set("? = ?", bun.Ident(col), fields[col])
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: update %s: %v", contractx.ErrUpstreamUnavailable, table, err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("%w: %s id=%s", contractx.ErrNotFound, table, id)
	}
	return nil
}

func (s *PostgresStore) get(ctx context.Context, table, pkCol, id string, model any) error {
	err := s.db.NewSelect().Model(model).Where("? = ?", bun.Ident(pkCol), id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s id=%s", contractx.ErrNotFound, table, id)
	}
	if err != nil {
		return fmt.Errorf("%w: get %s: %v", contractx.ErrUpstreamUnavailable, table, err)
	}
	return nil
}

/* --------------------------------- Leads --------------------------------- */

func (s *PostgresStore) InsertLead(ctx context.Context, lead *Lead) error {
	if lead.LeadID == "" {
		lead.LeadID = NewID(PrefixLead)
	}
	if lead.CreatedDate.IsZero() {
		lead.CreatedDate = time.Now().UTC()
	}
	return s.insert(ctx, lead)
}

func (s *PostgresStore) UpdateLead(ctx context.Context, id string, fields map[string]any) error {
	return s.update(ctx, "leads", "lead_id", id, fields, (*Lead)(nil))
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (*Lead, error) {
	lead := new(Lead)
	if err := s.get(ctx, "leads", "lead_id", id, lead); err != nil {
		return nil, err
	}
	return lead, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, f LeadFilter) ([]Lead, error) {
	var leads []Lead
	q := s.db.NewSelect().Model(&leads).Order("created_date ASC")
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("%w: list leads: %v", contractx.ErrUpstreamUnavailable, err)
	}
	return leads, nil
}

/* ---------------------------------- Pets ---------------------------------- */

func (s *PostgresStore) InsertPet(ctx context.Context, pet *Pet) error {
	if pet.PetID == "" {
		pet.PetID = NewID(PrefixPet)
	}
	return s.insert(ctx, pet)
}

func (s *PostgresStore) UpdatePet(ctx context.Context, id string, fields map[string]any) error {
	return s.update(ctx, "pets", "pet_id", id, fields, (*Pet)(nil))
}

func (s *PostgresStore) GetPet(ctx context.Context, id string) (*Pet, error) {
	pet := new(Pet)
	if err := s.get(ctx, "pets", "pet_id", id, pet); err != nil {
		return nil, err
	}
	return pet, nil
}

func (s *PostgresStore) ListPets(ctx context.Context, leadID string) ([]Pet, error) {
	var pets []Pet
	q := s.db.NewSelect().Model(&pets).Order("pet_id ASC")
	if leadID != "" {
		q = q.Where("lead_id = ?", leadID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("%w: list pets: %v", contractx.ErrUpstreamUnavailable, err)
	}
	return pets, nil
}

/* -------------------------------- Services -------------------------------- */

func (s *PostgresStore) InsertService(ctx context.Context, svc *Service) error {
	if svc.ServiceID == "" {
		svc.ServiceID = NewID(PrefixService)
	}
	return s.insert(ctx, svc)
}

func (s *PostgresStore) UpdateService(ctx context.Context, id string, fields map[string]any) error {
	return s.update(ctx, "services", "service_id", id, fields, (*Service)(nil))
}

func (s *PostgresStore) GetService(ctx context.Context, id string) (*Service, error) {
	svc := new(Service)
	if err := s.get(ctx, "services", "service_id", id, svc); err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *PostgresStore) ListServices(ctx context.Context, f ServiceFilter) ([]Service, error) {
	var services []Service
	q := s.db.NewSelect().Model(&services).Order("category ASC", "price ASC")
	if f.ActiveOnly {
		q = q.Where("is_active = TRUE")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("%w: list services: %v", contractx.ErrUpstreamUnavailable, err)
	}
	return services, nil
}

/* ------------------------------ Appointments ------------------------------ */

func (s *PostgresStore) InsertAppointment(ctx context.Context, appt *Appointment) error {
	if appt.AppointmentID == "" {
		appt.AppointmentID = NewID(PrefixAppointment)
	}
	return s.insert(ctx, appt)
}

func (s *PostgresStore) UpdateAppointment(ctx context.Context, id string, fields map[string]any) error {
	return s.update(ctx, "appointments", "appointment_id", id, fields, (*Appointment)(nil))
}

func (s *PostgresStore) GetAppointment(ctx context.Context, id string) (*Appointment, error) {
	appt := new(Appointment)
	if err := s.get(ctx, "appointments", "appointment_id", id, appt); err != nil {
		return nil, err
	}
	return appt, nil
}

func (s *PostgresStore) ListAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, error) {
	var appts []Appointment
	q := s.db.NewSelect().Model(&appts).Order("appointment_date ASC", "appointment_time ASC")
	if f.LeadID != "" {
		q = q.Where("lead_id = ?", f.LeadID)
	}
	if f.Date != "" {
		q = q.Where("appointment_date = ?", f.Date)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("%w: list appointments: %v", contractx.ErrUpstreamUnavailable, err)
	}
	return appts, nil
}

/* --------------------------------- Brands --------------------------------- */

func (s *PostgresStore) InsertBrand(ctx context.Context, brand *Brand) error {
	if brand.BrandID == "" {
		brand.BrandID = NewID(PrefixBrand)
	}
	return s.insert(ctx, brand)
}

func (s *PostgresStore) UpdateBrand(ctx context.Context, id string, fields map[string]any) error {
	return s.update(ctx, "brands", "brand_id", id, fields, (*Brand)(nil))
}

func (s *PostgresStore) GetBrand(ctx context.Context, id string) (*Brand, error) {
	brand := new(Brand)
	if err := s.get(ctx, "brands", "brand_id", id, brand); err != nil {
		return nil, err
	}
	return brand, nil
}

func (s *PostgresStore) ListBrands(ctx context.Context, f BrandFilter) ([]Brand, error) {
	var brands []Brand
	q := s.db.NewSelect().Model(&brands).Order("brand_id ASC")
	if f.ActiveOnly {
		q = q.Where("is_active = TRUE")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("%w: list brands: %v", contractx.ErrUpstreamUnavailable, err)
	}
	return brands, nil
}
