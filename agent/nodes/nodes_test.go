package nodes

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	contractx "github.com/pawdesk/groomflow/agent/contract"
	"github.com/pawdesk/groomflow/agent/pricing"
	recordx "github.com/pawdesk/groomflow/agent/record"
	statex "github.com/pawdesk/groomflow/agent/state"
)

var testNow = time.Date(2026, 9, 14, 12, 0, 0, 0, time.UTC)

/* ------------------------------ fake store ------------------------------ */

type fakeStore struct {
	recordx.Store // panic on anything a test does not stub

	leads        map[string]*recordx.Lead
	pets         map[string]*recordx.Pet
	services     []recordx.Service
	brands       []recordx.Brand
	appointments []recordx.Appointment
	leadUpdates  map[string]map[string]any
	petUpdates   map[string]map[string]any

	insertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		leads:       map[string]*recordx.Lead{},
		pets:        map[string]*recordx.Pet{},
		leadUpdates: map[string]map[string]any{},
		petUpdates:  map[string]map[string]any{},
	}
}

func (f *fakeStore) InsertLead(ctx context.Context, lead *recordx.Lead) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.leads[lead.LeadID] = lead
	return nil
}

func (f *fakeStore) InsertPet(ctx context.Context, pet *recordx.Pet) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.pets[pet.PetID] = pet
	return nil
}

func (f *fakeStore) UpdateLead(ctx context.Context, id string, fields map[string]any) error {
	f.leadUpdates[id] = fields
	return nil
}

func (f *fakeStore) UpdatePet(ctx context.Context, id string, fields map[string]any) error {
	f.petUpdates[id] = fields
	return nil
}

func (f *fakeStore) ListServices(ctx context.Context, _ recordx.ServiceFilter) ([]recordx.Service, error) {
	return f.services, nil
}

func (f *fakeStore) ListBrands(ctx context.Context, _ recordx.BrandFilter) ([]recordx.Brand, error) {
	return f.brands, nil
}

func (f *fakeStore) InsertAppointment(ctx context.Context, appt *recordx.Appointment) error {
	f.appointments = append(f.appointments, *appt)
	return nil
}

/* ----------------------------- fake gateway ----------------------------- */

type fakeGateway struct {
	freeSlots   []string
	taken       map[string]bool
	reserveErr  error
	reservation string
	reserved    []contractx.BookingRequest
}

func (f *fakeGateway) Check(ctx context.Context, date, startTime string) (bool, []contractx.Conflict, error) {
	if f.taken[date+" "+startTime] {
		return false, []contractx.Conflict{{EventID: "evt-x"}}, nil
	}
	return true, nil, nil
}

func (f *fakeGateway) Reserve(ctx context.Context, req contractx.BookingRequest) (string, error) {
	if f.reserveErr != nil {
		return "", f.reserveErr
	}
	f.reserved = append(f.reserved, req)
	if f.reservation == "" {
		return "evt-1", nil
	}
	return f.reservation, nil
}

func (f *fakeGateway) ListFree(ctx context.Context, date string, hours contractx.BusinessHours, slotLen time.Duration) ([]string, error) {
	return f.freeSlots, nil
}

func (f *fakeGateway) Cancel(ctx context.Context, id string) error { return nil }

/* -------------------------------- helpers -------------------------------- */

func testDeps(store *fakeStore, gw *fakeGateway) Deps {
	return Deps{
		Store:   store,
		Gateway: gw,
		Pricing: pricing.NewCalculator(pricing.Config{
			TierBoundsKg:    []float64{10, 25, 40},
			TierSurcharges:  []float64{0, 10, 25, 45},
			MattedSurcharge: 15,
		}),
		Hours:   contractx.BusinessHours{OpenHour: 9, CloseHour: 17},
		SlotLen: time.Hour,
	}
}

func qualifiedConv() *statex.Conversation {
	conv := statex.NewConversation("conv-1", testNow)
	conv.LeadID = "LEA111111"
	conv.PetID = "PET111111"
	conv.Customer = statex.Customer{Name: "Ann Lee", Phone: "555-0101"}
	conv.Pet = statex.Pet{Name: "Rex", Breed: "Poodle", WeightKg: 18, AgeYears: 4}
	return conv
}

func newTurn(conv *statex.Conversation, ex contractx.Extraction) *Turn {
	return &Turn{
		Conv:       conv,
		Inbound:    contractx.Inbound{ConversationID: conv.ID, Text: "hi", ReceivedAt: testNow},
		Extraction: ex,
		Now:        testNow,
	}
}

/* ------------------------------ QualifyLead ------------------------------ */

func TestQualifyLeadCreatesRecordsOnce(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	node := NewQualifyLead(testDeps(store, &fakeGateway{}), NewCollectDetails(testDeps(store, &fakeGateway{})))

	conv := statex.NewConversation("conv-1", testNow)
	tn := newTurn(conv, contractx.Extraction{Intent: contractx.IntentOther})
	if _, err := node.Execute(context.Background(), tn); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if conv.LeadID == "" || conv.PetID == "" {
		t.Fatalf("placeholder records not created: lead=%q pet=%q", conv.LeadID, conv.PetID)
	}
	if len(store.leads) != 1 || len(store.pets) != 1 {
		t.Fatalf("store holds %d leads, %d pets, want 1 each", len(store.leads), len(store.pets))
	}

	// second turn must not create more records
	tn2 := newTurn(conv, contractx.Extraction{Intent: contractx.IntentOther})
	if _, err := node.Execute(context.Background(), tn2); err != nil {
		t.Fatalf("Execute() second turn error = %v", err)
	}
	if len(store.leads) != 1 || len(store.pets) != 1 {
		t.Fatalf("records duplicated: %d leads, %d pets", len(store.leads), len(store.pets))
	}
}

/* ---------------------------- CollectDetails ---------------------------- */

func TestCollectDetailsPromptsOnlyMissingInCanonicalOrder(t *testing.T) {
	t.Parallel()

	node := NewCollectDetails(testDeps(newFakeStore(), &fakeGateway{}))
	conv := statex.NewConversation("conv-1", testNow)

	tn := newTurn(conv, contractx.Extraction{
		CustomerName: "Ann Lee",
		PetName:      "Rex",
		Intent:       contractx.IntentBook,
	})
	out, err := node.Execute(context.Background(), tn)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out.FieldsComplete {
		t.Fatal("fields must not be complete yet")
	}

	reply := tn.Reply()
	for _, supplied := range []string{"name,", "pet name"} {
		if strings.Contains(reply, "your "+supplied) {
			t.Fatalf("re-asked supplied field %q in %q", supplied, reply)
		}
	}
	idxPhone := strings.Index(reply, "phone")
	idxBreed := strings.Index(reply, "breed")
	idxWeight := strings.Index(reply, "weight")
	idxAge := strings.Index(reply, "age")
	if idxPhone == -1 || idxBreed == -1 || idxWeight == -1 || idxAge == -1 {
		t.Fatalf("missing fields not all prompted: %q", reply)
	}
	if !(idxPhone < idxBreed && idxBreed < idxWeight && idxWeight < idxAge) {
		t.Fatalf("prompt order not canonical: %q", reply)
	}
}

func TestCollectDetailsCompletionWritesThrough(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	node := NewCollectDetails(testDeps(store, &fakeGateway{}))
	conv := qualifiedConv()
	conv.Pet.AgeYears = 0 // one field left

	tn := newTurn(conv, contractx.Extraction{AgeYears: 4})
	out, err := node.Execute(context.Background(), tn)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !out.FieldsComplete {
		t.Fatal("expected FieldsComplete")
	}
	if store.leadUpdates["LEA111111"] == nil {
		t.Fatal("lead write-through missing")
	}
	if got := store.petUpdates["PET111111"]; got == nil || got["age_years"] != 4 {
		t.Fatalf("pet write-through = %v", got)
	}
}

func TestCollectDetailsStopsRepromptingAfterNoProgress(t *testing.T) {
	t.Parallel()

	node := NewCollectDetails(testDeps(newFakeStore(), &fakeGateway{}))
	conv := statex.NewConversation("conv-1", testNow)

	var lastReply string
	for i := 0; i < 4; i++ {
		tn := newTurn(conv, contractx.Extraction{Intent: contractx.IntentOther})
		out, err := node.Execute(context.Background(), tn)
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if out.FieldsComplete {
			t.Fatal("empty extraction must not complete the field set")
		}
		if conv.NoProgressTurns != i+1 {
			t.Fatalf("NoProgressTurns = %d after %d empty turns", conv.NoProgressTurns, i+1)
		}
		lastReply = tn.Reply()
	}
	if strings.Contains(lastReply, "I still need") {
		t.Fatalf("still re-listing fields after repeated no-progress: %q", lastReply)
	}
}

/* ----------------------------- ShowServices ----------------------------- */

func servicesFixture() []recordx.Service {
	return []recordx.Service{
		{ServiceID: "SVC111111", ServiceName: "Basic Wash", Category: "Grooming", Price: 30, DurationMinutes: 45, IsActive: true},
		{ServiceID: "SVC222222", ServiceName: "Full Groom", Category: "Grooming", Price: 60, DurationMinutes: 90, IsActive: true},
		{ServiceID: "SVC333333", ServiceName: "Nail Trim", Category: "Quick Care", Price: 15, DurationMinutes: 15, IsActive: true},
	}
}

func TestShowServicesListsPricedMenu(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.services = servicesFixture()
	node := NewShowServices(testDeps(store, &fakeGateway{}))

	tn := newTurn(qualifiedConv(), contractx.Extraction{Intent: contractx.IntentOther})
	out, err := node.Execute(context.Background(), tn)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out.ServiceChosen {
		t.Fatal("no service should be chosen yet")
	}

	reply := tn.Reply()
	// 18kg pet: 10 surcharge on every base price
	if !strings.Contains(reply, "Basic Wash — $40.00") {
		t.Fatalf("menu not priced for pet weight: %q", reply)
	}
	if !strings.Contains(reply, "Full Groom — $70.00") || !strings.Contains(reply, "Nail Trim — $25.00") {
		t.Fatalf("menu incomplete: %q", reply)
	}
}

func TestShowServicesLocksInChoice(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.services = servicesFixture()
	node := NewShowServices(testDeps(store, &fakeGateway{}))

	conv := qualifiedConv()
	tn := newTurn(conv, contractx.Extraction{
		Intent:      contractx.IntentChooseService,
		ServiceName: "full groom",
	})
	out, err := node.Execute(context.Background(), tn)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !out.ServiceChosen {
		t.Fatal("expected ServiceChosen")
	}
	if conv.SelectedService != "Full Groom" {
		t.Fatalf("SelectedService = %q, want Full Groom", conv.SelectedService)
	}
}

/* ---------------------------- BookAppointment ---------------------------- */

func TestBookAppointmentReservesAndPersists(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.services = servicesFixture()
	gw := &fakeGateway{taken: map[string]bool{}}
	node := NewBookAppointment(testDeps(store, gw))

	conv := qualifiedConv()
	conv.SelectedService = "Basic Wash"
	conv.ApplyStatus(statex.StatusQualifying, testNow)
	conv.ApplyStatus(statex.StatusBooking, testNow)

	tn := newTurn(conv, contractx.Extraction{
		Intent: contractx.IntentBook,
		Date:   "2026-09-15",
		Time:   "10:00",
	})
	out, err := node.Execute(context.Background(), tn)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !out.Reserved {
		t.Fatal("expected Reserved outcome")
	}
	if conv.BookedAppointment != "evt-1" {
		t.Fatalf("BookedAppointment = %q, want evt-1", conv.BookedAppointment)
	}
	if len(store.appointments) != 1 {
		t.Fatalf("appointments persisted = %d, want 1", len(store.appointments))
	}
	appt := store.appointments[0]
	if appt.ServiceID != "SVC111111" || appt.TotalPrice != 40 {
		t.Fatalf("appointment record = %+v", appt)
	}
	if len(gw.reserved) != 1 || gw.reserved[0].PetName != "Rex" {
		t.Fatalf("reservation request = %+v", gw.reserved)
	}
}

func TestBookAppointmentConflictReoffersWithoutDroppingIntent(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.services = servicesFixture()
	gw := &fakeGateway{
		taken:     map[string]bool{"2026-09-15 10:00": true},
		freeSlots: []string{"09:00", "11:00", "12:00", "13:00", "14:00", "15:00", "16:00"},
	}
	node := NewBookAppointment(testDeps(store, gw))

	conv := qualifiedConv()
	conv.SelectedService = "Basic Wash"
	conv.ApplyStatus(statex.StatusQualifying, testNow)
	conv.ApplyStatus(statex.StatusBooking, testNow)

	tn := newTurn(conv, contractx.Extraction{Date: "2026-09-15", Time: "10:00"})
	out, err := node.Execute(context.Background(), tn)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !out.Conflict || out.Reserved {
		t.Fatalf("outcome = %+v, want conflict without reservation", out)
	}
	if conv.BookedAppointment != "" {
		t.Fatal("conflict must not set BookedAppointment")
	}
	if conv.Pending == nil || conv.Pending.Date != "2026-09-15" {
		t.Fatal("conflict must keep the pending date")
	}

	reply := tn.Reply()
	if !strings.Contains(reply, "09:00") {
		t.Fatalf("free slots not re-offered: %q", reply)
	}
	// shortlist cap
	if strings.Contains(reply, "16:00") {
		t.Fatalf("shortlist not capped at %d: %q", maxSlotSuggestions, reply)
	}
}

func TestBookAppointmentUpstreamFailureIsError(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	gw := &fakeGateway{
		taken:      map[string]bool{},
		reserveErr: fmt.Errorf("%w: calendar down", contractx.ErrUpstreamUnavailable),
	}
	node := NewBookAppointment(testDeps(store, gw))

	conv := qualifiedConv()
	conv.SelectedService = "Basic Wash"
	conv.ApplyStatus(statex.StatusQualifying, testNow)
	conv.ApplyStatus(statex.StatusBooking, testNow)

	tn := newTurn(conv, contractx.Extraction{Date: "2026-09-15", Time: "10:00"})
	_, err := node.Execute(context.Background(), tn)
	if err == nil {
		t.Fatal("expected error when gateway is down")
	}
	if conv.BookedAppointment != "" {
		t.Fatal("failed reserve must not set BookedAppointment")
	}
}

/* ------------------------------ ProvideInfo ------------------------------ */

func TestProvideInfoAnswersFromBrands(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.brands = []recordx.Brand{
		{BrandID: "BRD111111", BrandName: "ShinyCoat", Description: "hypoallergenic shampoo", IsActive: true},
	}
	node := NewProvideInfo(testDeps(store, &fakeGateway{}))

	conv := qualifiedConv()
	before := *conv
	tn := newTurn(conv, contractx.Extraction{Intent: contractx.IntentInfo})
	out, err := node.Execute(context.Background(), tn)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !out.Answered {
		t.Fatal("expected Answered")
	}
	if !strings.Contains(tn.Reply(), "ShinyCoat") {
		t.Fatalf("brand missing from answer: %q", tn.Reply())
	}
	if conv.Customer != before.Customer || conv.Pet != before.Pet || conv.SelectedService != before.SelectedService {
		t.Fatal("info turn mutated conversation fields")
	}
}

/* ------------------------------- FollowUp ------------------------------- */

func TestFollowUpBumpsCounter(t *testing.T) {
	t.Parallel()

	node := NewFollowUp()
	conv := qualifiedConv()

	tn := newTurn(conv, contractx.Extraction{})
	if _, err := node.Execute(context.Background(), tn); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if conv.FollowUps != 1 {
		t.Fatalf("FollowUps = %d, want 1", conv.FollowUps)
	}
	if tn.Reply() == "" {
		t.Fatal("follow-up must produce a message")
	}
}

/* ------------------------------ ComposeReply ----------------------------- */

func TestComposeReplyRejectsEmpty(t *testing.T) {
	t.Parallel()

	tn := newTurn(qualifiedConv(), contractx.Extraction{})
	if _, err := ComposeReply(tn); err == nil {
		t.Fatal("empty reply must be rejected")
	}

	tn.Say("hello")
	out, err := ComposeReply(tn)
	if err != nil {
		t.Fatalf("ComposeReply() error = %v", err)
	}
	if out.ConversationID != "conv-1" || out.Reply != "hello" {
		t.Fatalf("outbound = %+v", out)
	}
}
