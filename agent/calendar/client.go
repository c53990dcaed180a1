// Package calendar implements the availability gateway against a remote
// scheduling service. The service has no native compare-and-swap, so
// Reserve re-checks conflicts immediately before writing and serializes
// local reservations; races against other writers of the same calendar
// remain possible and surface as ErrConflict, which callers must treat
// as retryable (re-list, re-offer).
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/pawdesk/groomflow/agent/contract"
	slotx "github.com/pawdesk/groomflow/agent/slot"
)

const maxResponseSizeBytes = 2 << 20

// Reminder offsets every created appointment carries.
var reminderOffsets = []time.Duration{24 * time.Hour, 30 * time.Minute}

type Config struct {
	URL          string        `envconfig:"URL" split_words:"true" required:"true"`
	Token        string        `envconfig:"TOKEN" split_words:"true" required:"true"`
	Timeout      time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
	SlotDuration time.Duration `envconfig:"SLOT_DURATION" split_words:"true" default:"1h"`
	Retries      int           `envconfig:"RETRIES" split_words:"true" default:"3"`
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// Client talks to the remote scheduling service over REST.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	slotLen    time.Duration
	retries    int

	// Serializes the re-check + write inside Reserve so concurrent
	// local bookers cannot both pass the final conflict check.
	reserveMu sync.Mutex
}

var _ contractx.AvailabilityGateway = (*Client)(nil)

type event struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Summary     string `json:"summary,omitempty"`
	Description string `json:"description,omitempty"`
}

type reminder struct {
	Method  string `json:"method"`
	Minutes int    `json:"minutes"`
}

type createEventRequest struct {
	Date        string     `json:"date"`
	StartTime   string     `json:"start_time"`
	EndTime     string     `json:"end_time"`
	Summary     string     `json:"summary"`
	Description string     `json:"description"`
	Reminders   []reminder `json:"reminders"`
}

func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("calendar url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid calendar url: %w", err)
	}
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("calendar token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	slotLen := cfg.SlotDuration
	if slotLen <= 0 {
		slotLen = slotx.DefaultDuration
	}
	retries := cfg.Retries
	if retries <= 0 {
		retries = 3
	}

	c := &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		slotLen:    slotLen,
		retries:    retries,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

/* ------------------------------ Gateway API ------------------------------ */

// Check reports whether a slot is free and which existing bookings
// conflict. The result is advisory: only Reserve is authoritative.
func (c *Client) Check(ctx context.Context, date, startTime string) (bool, []contractx.Conflict, error) {
	want, err := parseSlot(date, startTime, c.slotLen)
	if err != nil {
		return false, nil, err
	}

	events, err := c.listEvents(ctx, date)
	if err != nil {
		return false, nil, err
	}

	conflicts := conflictsFor(want, events)
	return len(conflicts) == 0, conflicts, nil
}

// Reserve is the single point of truth for slot exclusivity. It re-runs
// the conflict check immediately before writing; losing the race yields
// ErrConflict, transport failures yield ErrUpstreamUnavailable.
func (c *Client) Reserve(ctx context.Context, req contractx.BookingRequest) (string, error) {
	want, err := parseSlot(req.Date, req.StartTime, c.slotLen)
	if err != nil {
		return "", err
	}

	c.reserveMu.Lock()
	defer c.reserveMu.Unlock()

	events, err := c.listEvents(ctx, req.Date)
	if err != nil {
		return "", err
	}
	if conflicts := conflictsFor(want, events); len(conflicts) > 0 {
		return "", fmt.Errorf("%w: %s %s", contractx.ErrConflict, req.Date, req.StartTime)
	}

	body := createEventRequest{
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   want.End().Format("15:04"),
		Summary:   fmt.Sprintf("%s - %s", req.ServiceName, req.PetName),
		Description: fmt.Sprintf(
			"Customer: %s\nPet: %s\nService: %s\n\nNotes: %s",
			req.CustomerName, req.PetName, req.ServiceName, req.Notes,
		),
	}
	for _, off := range reminderOffsets {
		body.Reminders = append(body.Reminders, reminder{
			Method:  "notification",
			Minutes: int(off / time.Minute),
		})
	}

	var created event
	if err := c.do(ctx, http.MethodPost, "/events", body, &created); err != nil {
		return "", err
	}
	if strings.TrimSpace(created.ID) == "" {
		return "", fmt.Errorf("%w: calendar returned no event id", contractx.ErrUpstreamUnavailable)
	}

	log.Debug().
		Str("reservation_id", created.ID).
		Str("date", req.Date).
		Str("start_time", req.StartTime).
		Msg("slot reserved")
	return created.ID, nil
}

// ListFree returns the slot-calculus candidates for the date minus the
// starts occupied by existing bookings, ordered.
func (c *Client) ListFree(ctx context.Context, date string, hours contractx.BusinessHours, slotLen time.Duration) ([]string, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("%w: bad date %q", contractx.ErrValidation, date)
	}
	if slotLen <= 0 {
		slotLen = c.slotLen
	}

	open := day.Add(time.Duration(hours.OpenHour) * time.Hour)
	close := day.Add(time.Duration(hours.CloseHour) * time.Hour)
	candidates := slotx.Enumerate(open, close, slotLen)
	if len(candidates) == 0 {
		return nil, nil
	}

	events, err := c.listEvents(ctx, date)
	if err != nil {
		return nil, err
	}

	var free []string
	for _, cand := range candidates {
		if len(conflictsFor(cand, events)) == 0 {
			free = append(free, cand.Start.Format("15:04"))
		}
	}
	sort.Strings(free)
	return free, nil
}

// Cancel deletes a reservation; cancelling twice is indistinguishable
// from cancelling once.
func (c *Client) Cancel(ctx context.Context, reservationID string) error {
	id := strings.TrimSpace(reservationID)
	if id == "" {
		return fmt.Errorf("%w: reservation id is empty", contractx.ErrValidation)
	}
	err := c.do(ctx, http.MethodDelete, "/events/"+url.PathEscape(id), nil, nil)
	if errors.Is(err, contractx.ErrNotFound) {
		return nil
	}
	return err
}

/* ------------------------------- Internals ------------------------------- */

func (c *Client) listEvents(ctx context.Context, date string) ([]event, error) {
	var out struct {
		Events []event `json:"events"`
	}
	if err := c.do(ctx, http.MethodGet, "/events?date="+url.QueryEscape(date), nil, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var lastErr error
	backoff := 200 * time.Millisecond
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", contractx.ErrUpstreamUnavailable, ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		lastErr = c.doOnce(ctx, method, path, body, out)
		if lastErr == nil || !errors.Is(lastErr, contractx.ErrUpstreamUnavailable) {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal calendar request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build calendar request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", contractx.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return fmt.Errorf("%w: read calendar response: %v", contractx.ErrUpstreamUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%w: calendar rejected write", contractx.ErrConflict)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s %s", contractx.ErrNotFound, method, path)
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: calendar status=%d", contractx.ErrUpstreamUnavailable, resp.StatusCode)
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		return fmt.Errorf("calendar status=%d body=%s", resp.StatusCode, string(raw))
	}

	if out != nil && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode calendar response: %w", err)
		}
	}
	return nil
}

func parseSlot(date, startTime string, d time.Duration) (slotx.Slot, error) {
	start, err := time.Parse("2006-01-02 15:04", date+" "+startTime)
	if err != nil {
		return slotx.Slot{}, fmt.Errorf("%w: bad slot %q %q", contractx.ErrValidation, date, startTime)
	}
	return slotx.Slot{Start: start, Duration: d}, nil
}

func conflictsFor(want slotx.Slot, events []event) []contractx.Conflict {
	var conflicts []contractx.Conflict
	for _, ev := range events {
		start, err := time.Parse("2006-01-02 15:04", ev.Date+" "+ev.StartTime)
		if err != nil {
			continue
		}
		end, err := time.Parse("2006-01-02 15:04", ev.Date+" "+ev.EndTime)
		if err != nil || !end.After(start) {
			end = start.Add(want.Duration)
		}
		occupied := slotx.Slot{Start: start, Duration: end.Sub(start)}
		if slotx.Overlaps(want, occupied) {
			conflicts = append(conflicts, contractx.Conflict{
				EventID: ev.ID,
				Start:   start,
				End:     end,
				Summary: ev.Summary,
			})
		}
	}
	return conflicts
}
