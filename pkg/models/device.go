package models

import (
	"net/netip"
	"time"
)

// EventTypeDHCPLease is the dashboard event type for a DHCP lease assignment.
const EventTypeDHCPLease = "dhcp_lease"

// DevicePolicy is a client device policy accepted by the dashboard.
type DevicePolicy string

// DevicePolicyBlocked denies the client all network access.
const DevicePolicyBlocked DevicePolicy = "Blocked"

// SearchQuery is the validated input of one lease search.
type SearchQuery struct {
	TargetIP netip.Addr `json:"target_ip" yaml:"target_ip"`
	Cutoff   time.Time  `json:"cutoff" yaml:"cutoff"`
}

// LeaseEvent is one historical DHCP lease assignment from a network event log.
type LeaseEvent struct {
	OccurredAt        time.Time `json:"occurred_at" yaml:"occurred_at"`
	ClientID          string    `json:"client_id" yaml:"client_id" example:"k74272e"`
	ClientDescription string    `json:"client_description" yaml:"client_description" example:"lab-laptop"`
	ClientMAC         string    `json:"client_mac,omitempty" yaml:"client_mac,omitempty" example:"22:33:44:55:66:77"`
	AssignedIP        string    `json:"assigned_ip" yaml:"assigned_ip" example:"10.0.0.5"`
	VLAN              string    `json:"vlan,omitempty" yaml:"vlan,omitempty" example:"10"`
}

// ClientDetail is the enrichment fetched for the client of a selected lease.
type ClientDetail struct {
	MAC          string    `json:"mac" yaml:"mac"`
	Description  string    `json:"description,omitempty" yaml:"description,omitempty"`
	Manufacturer string    `json:"manufacturer,omitempty" yaml:"manufacturer,omitempty"`
	OS           string    `json:"os,omitempty" yaml:"os,omitempty"`
	LastSeen     time.Time `json:"last_seen,omitempty" yaml:"last_seen,omitempty"`
}
