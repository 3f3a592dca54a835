// Package caldav implements the calendar-service abstraction against a
// CalDAV server (iCloud, Fastmail, Radicale and friends).
package caldav

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"github.com/teambition/rrule-go"

	"github.com/gugamistri/meetingmind-sub001/internal/domain"
)

const (
	// Apple iCloud CalDAV endpoint, used when an account has no server URL.
	DefaultiCloudURL = "https://caldav.icloud.com"
)

// Service fetches events for CalDAV-backed accounts. Connections are
// cached per account id.
type Service struct {
	mu      sync.Mutex
	clients map[int64]*caldav.Client
}

func NewService() *Service {
	return &Service{clients: make(map[int64]*caldav.Client)}
}

// Provider returns the provider key this service registers under.
func (s *Service) Provider() string {
	return "caldav"
}

func (s *Service) connect(account *domain.CalendarAccount) (*caldav.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if client, ok := s.clients[account.ID]; ok {
		return client, nil
	}

	baseURL := account.ServerURL
	if baseURL == "" {
		baseURL = DefaultiCloudURL
	}

	httpClient := &http.Client{
		Transport: &basicAuthTransport{
			username: account.Username,
			password: account.Password,
		},
		Timeout: 30 * time.Second,
	}

	client, err := caldav.NewClient(httpClient, baseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to CalDAV: %w", err)
	}

	s.clients[account.ID] = client
	return client, nil
}

// basicAuthTransport adds Basic Auth to HTTP requests.
type basicAuthTransport struct {
	username string
	password string
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.username, t.password)
	return http.DefaultTransport.RoundTrip(req)
}

// DiscoverCalendars returns all calendar collections for the account.
func (s *Service) DiscoverCalendars(ctx context.Context, account *domain.CalendarAccount) ([]Calendar, error) {
	client, err := s.connect(account)
	if err != nil {
		return nil, err
	}

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, mapAuthErr(fmt.Errorf("find principal: %w", err))
	}

	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, mapAuthErr(fmt.Errorf("find home set: %w", err))
	}

	cals, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, mapAuthErr(fmt.Errorf("find calendars: %w", err))
	}

	var result []Calendar
	for _, cal := range cals {
		result = append(result, Calendar{
			ID:          cal.Path,
			DisplayName: cal.Name,
			URL:         cal.Path,
		})
	}
	return result, nil
}

// FetchEvents returns the account's events inside rng, with recurring
// events expanded into concrete instances.
func (s *Service) FetchEvents(ctx context.Context, account *domain.CalendarAccount, rng domain.TimeRange) ([]domain.CalendarEvent, error) {
	client, err := s.connect(account)
	if err != nil {
		return nil, err
	}

	calendars, err := s.DiscoverCalendars(ctx, account)
	if err != nil {
		return nil, err
	}

	query := &caldav.CalendarQuery{
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{
				{
					Name:  "VEVENT",
					Start: rng.From,
					End:   rng.To,
				},
			},
		},
	}

	var events []domain.CalendarEvent
	for _, cal := range calendars {
		objects, err := client.QueryCalendar(ctx, cal.ID, query)
		if err != nil {
			return nil, mapAuthErr(fmt.Errorf("query calendar %s: %w", cal.ID, err))
		}

		for _, obj := range objects {
			raw, err := parseCalendarObject(&obj)
			if err != nil {
				continue // skip invalid events
			}
			events = append(events, expand(raw, account.ID, rng)...)
		}
	}

	return events, nil
}

// mapAuthErr translates provider credential rejections into the typed
// invalid-token error so the sync layer can request re-auth.
func mapAuthErr(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "401") || strings.Contains(msg, "403") ||
		strings.Contains(msg, "unauthorized") || strings.Contains(msg, "forbidden") {
		return fmt.Errorf("%w: %s", domain.ErrInvalidToken, err)
	}
	return err
}

// parseCalendarObject extracts the first VEVENT of a calendar object.
func parseCalendarObject(obj *caldav.CalendarObject) (rawEvent, error) {
	var event rawEvent

	if obj.Data == nil {
		return event, fmt.Errorf("no data in calendar object")
	}

	for _, comp := range obj.Data.Children {
		if comp.Name != ical.CompEvent {
			continue
		}

		if prop := comp.Props.Get(ical.PropUID); prop != nil {
			event.UID = prop.Value
		}
		if prop := comp.Props.Get(ical.PropSummary); prop != nil {
			event.Summary = prop.Value
		}
		if prop := comp.Props.Get(ical.PropDescription); prop != nil {
			event.Description = prop.Value
		}
		if prop := comp.Props.Get(ical.PropLocation); prop != nil {
			event.Location = prop.Value
		}
		if prop := comp.Props.Get(ical.PropURL); prop != nil {
			event.URL = prop.Value
		}
		if prop := comp.Props.Get(ical.PropRecurrenceRule); prop != nil {
			event.RRule = prop.Value
		}

		for _, prop := range comp.Props.Values(ical.PropAttendee) {
			event.Participants = append(event.Participants, strings.TrimPrefix(prop.Value, "mailto:"))
		}

		if prop := comp.Props.Get(ical.PropDateTimeStart); prop != nil {
			t, err := prop.DateTime(time.UTC)
			if err == nil {
				event.StartTime = t
			}
			if valueType := prop.Params.Get(ical.ParamValue); valueType == string(ical.ValueDate) {
				event.AllDay = true
			}
		}
		if prop := comp.Props.Get(ical.PropDateTimeEnd); prop != nil {
			t, err := prop.DateTime(time.UTC)
			if err == nil {
				event.EndTime = t
			}
		}

		break // only the first VEVENT
	}

	if event.UID == "" {
		return event, fmt.Errorf("event has no UID")
	}
	return event, nil
}

// expand converts a raw event into domain events, expanding a recurrence
// rule into the instances that fall inside rng.
func expand(raw rawEvent, accountID int64, rng domain.TimeRange) []domain.CalendarEvent {
	base := domain.CalendarEvent{
		AccountID:       accountID,
		ExternalEventID: raw.UID,
		Title:           raw.Summary,
		Description:     raw.Description,
		Location:        raw.Location,
		StartTime:       raw.StartTime,
		EndTime:         raw.EndTime,
		AllDay:          raw.AllDay,
		Participants:    raw.Participants,
		MeetingURL:      meetingURL(raw),
	}

	if raw.RRule == "" {
		return []domain.CalendarEvent{base}
	}

	opt, err := rrule.StrToROption(raw.RRule)
	if err != nil {
		return []domain.CalendarEvent{base}
	}
	opt.Dtstart = raw.StartTime

	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return []domain.CalendarEvent{base}
	}

	// A VEVENT without DTEND leaves EndTime zero, which would put every
	// instance's end centuries before its start.
	duration := raw.EndTime.Sub(raw.StartTime)
	if duration < 0 {
		duration = 0
	}
	var instances []domain.CalendarEvent
	for _, start := range rule.Between(rng.From, rng.To, true) {
		inst := base
		inst.StartTime = start
		inst.EndTime = start.Add(duration)
		if !start.Equal(raw.StartTime) {
			inst.ExternalEventID = fmt.Sprintf("%s-%d", raw.UID, start.Unix())
		}
		instances = append(instances, inst)
	}
	if len(instances) == 0 {
		return []domain.CalendarEvent{base}
	}
	return instances
}

// meetingURL picks a joinable link: an explicit URL property first, then
// the first http link found in location or description.
func meetingURL(raw rawEvent) string {
	if strings.HasPrefix(raw.URL, "http") {
		return raw.URL
	}
	for _, text := range []string{raw.Location, raw.Description} {
		for _, field := range strings.Fields(text) {
			if strings.HasPrefix(field, "http://") || strings.HasPrefix(field, "https://") {
				return field
			}
		}
	}
	return ""
}
