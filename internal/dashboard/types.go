package dashboard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/HerbHall/leasetrace/pkg/models"
)

// Dashboard API request/response types.
// These mirror the v1 REST entity shapes used by the lease search.

// Event is one entry of a network event log.
type Event struct {
	OccurredAt        time.Time `json:"occurredAt"`
	NetworkID         string    `json:"networkId,omitempty"`
	Type              string    `json:"type"`
	Description       string    `json:"description,omitempty"`
	Category          string    `json:"category,omitempty"`
	ClientID          string    `json:"clientId,omitempty"`
	ClientDescription string    `json:"clientDescription,omitempty"`
	ClientMAC         string    `json:"clientMac,omitempty"`
	DeviceSerial      string    `json:"deviceSerial,omitempty"`
	DeviceName        string    `json:"deviceName,omitempty"`
	EventData         EventData `json:"eventData"`
}

// EventData carries the type specific payload of an event. Only the fields
// present on DHCP lease events are decoded.
type EventData struct {
	IP   string     `json:"ip,omitempty"`
	VLAN FlexString `json:"vlan,omitempty"`
	MAC  string     `json:"mac,omitempty"`
}

// LeaseEvent converts a lease log entry into the domain type.
func (e Event) LeaseEvent() models.LeaseEvent {
	mac := e.ClientMAC
	if mac == "" {
		mac = e.EventData.MAC
	}
	return models.LeaseEvent{
		OccurredAt:        e.OccurredAt.UTC(),
		ClientID:          e.ClientID,
		ClientDescription: e.ClientDescription,
		ClientMAC:         mac,
		AssignedIP:        e.EventData.IP,
		VLAN:              string(e.EventData.VLAN),
	}
}

// FlexString decodes a JSON string, number or null into a string. The
// dashboard reports VLAN IDs as either.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("flex string: %w", err)
		}
		*f = FlexString(n.String())
		return nil
	}
}

// EventQuery selects one page of a network event log.
type EventQuery struct {
	NetworkID    string
	ProductType  string
	EventTypes   []string
	EndingBefore time.Time // exclusive upper bound; zero means "now"
	PerPage      int
}

// EventPage is one page of events, newest first.
type EventPage struct {
	Events      []Event
	HasMore     bool
	PageStartAt time.Time
	PageEndAt   time.Time
}

// eventsResponse is the envelope returned by the network events endpoint.
type eventsResponse struct {
	Message     *string `json:"message"`
	PageStartAt string  `json:"pageStartAt"`
	PageEndAt   string  `json:"pageEndAt"`
	Events      []Event `json:"events"`
}

// apiClient is the network client entity.
type apiClient struct {
	ID           string          `json:"id"`
	MAC          string          `json:"mac"`
	Description  string          `json:"description"`
	IP           string          `json:"ip"`
	Manufacturer string          `json:"manufacturer"`
	OS           string          `json:"os"`
	LastSeen     json.RawMessage `json:"lastSeen"`
}

func (c apiClient) detail() models.ClientDetail {
	return models.ClientDetail{
		MAC:          c.MAC,
		Description:  c.Description,
		Manufacturer: c.Manufacturer,
		OS:           c.OS,
		LastSeen:     parseFlexTime(c.LastSeen),
	}
}

// policyRequest is the payload for updating a client's device policy.
type policyRequest struct {
	DevicePolicy  string `json:"devicePolicy"`
	GroupPolicyID string `json:"groupPolicyId,omitempty"`
}

// PolicyResult is the device policy reported back after an update.
type PolicyResult struct {
	MAC           string `json:"mac"`
	DevicePolicy  string `json:"devicePolicy"`
	GroupPolicyID string `json:"groupPolicyId,omitempty"`
}

// parseFlexTime accepts epoch seconds or an RFC 3339 string. Anything else
// yields the zero time.
func parseFlexTime(raw json.RawMessage) time.Time {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}
		}
		return t.UTC()
	}
	secs, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(int64(secs), 0).UTC()
}

func parseOptionalTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
