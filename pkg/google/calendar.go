package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const calendarBaseURL = "https://www.googleapis.com/calendar/v3"

// Event is the subset of a Google Calendar event the assistant surfaces.
type Event struct {
	ID          string `json:"id"`
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	Start       string `json:"start"`
	End         string `json:"end"`
	HTMLLink    string `json:"html_link,omitempty"`
}

// CalendarService talks to the Google Calendar API on behalf of a user.
type CalendarService struct {
	clients ClientProvider
	baseURL string
}

func NewCalendarService(clients ClientProvider) *CalendarService {
	return &CalendarService{clients: clients, baseURL: calendarBaseURL}
}

// NewCalendarServiceWithBaseURL is for tests pointing at a fake server.
func NewCalendarServiceWithBaseURL(clients ClientProvider, baseURL string) *CalendarService {
	return &CalendarService{clients: clients, baseURL: baseURL}
}

type eventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type apiEvent struct {
	ID          string    `json:"id,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       eventTime `json:"start,omitempty"`
	End         eventTime `json:"end,omitempty"`
	HTMLLink    string    `json:"htmlLink,omitempty"`
}

func (e apiEvent) toEvent() Event {
	pick := func(t eventTime) string {
		if t.DateTime != "" {
			return t.DateTime
		}
		return t.Date
	}
	return Event{
		ID:          e.ID,
		Summary:     e.Summary,
		Description: e.Description,
		Location:    e.Location,
		Start:       pick(e.Start),
		End:         pick(e.End),
		HTMLLink:    e.HTMLLink,
	}
}

// ListEvents returns the user's primary-calendar events in [timeMin, timeMax).
func (s *CalendarService) ListEvents(ctx context.Context, userID string, timeMin, timeMax time.Time, maxResults int) ([]Event, error) {
	client, err := s.clients.AuthorizedClient(ctx, userID)
	if err != nil {
		return nil, err
	}
	if maxResults <= 0 || maxResults > 50 {
		maxResults = 10
	}

	params := url.Values{}
	params.Set("timeMin", timeMin.Format(time.RFC3339))
	params.Set("timeMax", timeMax.Format(time.RFC3339))
	params.Set("singleEvents", "true")
	params.Set("orderBy", "startTime")
	params.Set("maxResults", strconv.Itoa(maxResults))

	endpoint := s.baseURL + "/calendars/primary/events?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build calendar request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calendar request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError("calendar", resp)
	}

	var payload struct {
		Items []apiEvent `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode calendar response: %w", err)
	}

	events := make([]Event, 0, len(payload.Items))
	for _, item := range payload.Items {
		events = append(events, item.toEvent())
	}
	return events, nil
}

// CreateEventInput is the payload prepared by the confirmation gate.
type CreateEventInput struct {
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	Start       string `json:"start"`
	End         string `json:"end"`
}

// CreateEvent inserts an event into the user's primary calendar.
func (s *CalendarService) CreateEvent(ctx context.Context, userID string, input CreateEventInput) (*Event, error) {
	client, err := s.clients.AuthorizedClient(ctx, userID)
	if err != nil {
		return nil, err
	}
	if input.Summary == "" {
		return nil, fmt.Errorf("event summary is required")
	}
	if input.Start == "" || input.End == "" {
		return nil, fmt.Errorf("event start and end times are required")
	}

	body, err := json.Marshal(apiEvent{
		Summary:     input.Summary,
		Description: input.Description,
		Location:    input.Location,
		Start:       eventTime{DateTime: input.Start},
		End:         eventTime{DateTime: input.End},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}

	endpoint := s.baseURL + "/calendars/primary/events"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build calendar request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calendar request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError("calendar", resp)
	}

	var created apiEvent
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("failed to decode created event: %w", err)
	}
	event := created.toEvent()
	return &event, nil
}

func apiError(service string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return fmt.Errorf("%s API error %d: %s", service, resp.StatusCode, string(body))
}
