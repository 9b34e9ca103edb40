package users

import (
	"encoding/json"
	"strings"
)

// Capability names one administrative section of the console. The value is the
// flag name the backend uses on profile.role.
type Capability string

const (
	CapDashboard     Capability = "dashboard"
	CapPointsOfSale  Capability = "points_vente"
	CapMobileVendors Capability = "vendeurs_ambulants"
	CapProspects     Capability = "prospects"
	CapInventory     Capability = "inventaire"
	CapOrders        Capability = "commandes"
	CapUsers         Capability = "utilisateurs"
	CapAnalytics     Capability = "analytics"
	CapGeolocation   Capability = "geolocalisation"
	CapConfiguration Capability = "configuration"
	CapZoning        Capability = "zonage"
)

var allCapabilities = []Capability{
	CapDashboard,
	CapPointsOfSale,
	CapMobileVendors,
	CapProspects,
	CapInventory,
	CapOrders,
	CapUsers,
	CapAnalytics,
	CapGeolocation,
	CapConfiguration,
	CapZoning,
}

// AllCapabilities returns every known capability in display order.
func AllCapabilities() []Capability {
	out := make([]Capability, len(allCapabilities))
	copy(out, allCapabilities)
	return out
}

func (c Capability) Valid() bool {
	for _, known := range allCapabilities {
		if c == known {
			return true
		}
	}
	return false
}

// Permissions is the typed capability set of a role. Missing entries deny.
type Permissions map[Capability]bool

func (p Permissions) Allows(c Capability) bool {
	return p[c]
}

// Granted lists the allowed capabilities in display order.
func (p Permissions) Granted() []Capability {
	var out []Capability
	for _, c := range allCapabilities {
		if p[c] {
			out = append(out, c)
		}
	}
	return out
}

// Role is the backend role carried on the user profile: a name plus one flat
// boolean per capability.
type Role struct {
	ID          int         `json:"-"`
	Name        string      `json:"-"`
	Permissions Permissions `json:"-"`
}

func (r *Role) UnmarshalJSON(data []byte) error {
	*r = Role{Permissions: Permissions{}}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil // role sent as a bare reference, no flags to grant
	}
	if v, ok := raw["id"]; ok {
		_ = json.Unmarshal(v, &r.ID)
	}
	if v, ok := raw["name"]; ok {
		_ = json.Unmarshal(v, &r.Name)
	}
	for _, c := range allCapabilities {
		v, ok := raw[string(c)]
		if !ok {
			continue
		}
		var allowed bool
		if err := json.Unmarshal(v, &allowed); err != nil {
			continue // non boolean flags deny
		}
		r.Permissions[c] = allowed
	}
	return nil
}

func (r Role) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(allCapabilities)+2)
	if r.ID != 0 {
		out["id"] = r.ID
	}
	if r.Name != "" {
		out["name"] = r.Name
	}
	for _, c := range allCapabilities {
		out[string(c)] = r.Permissions.Allows(c)
	}
	return json.Marshal(out)
}

// pathCapabilities maps backend resource prefixes to the section gating them.
// The first matching prefix wins.
var pathCapabilities = []struct {
	prefix string
	cap    Capability
}{
	{"/dashboard/", CapDashboard},
	{"/points-vente/", CapPointsOfSale},
	{"/mobile-vendors/", CapMobileVendors},
	{"/vendeurs-ambulants/", CapMobileVendors},
	{"/prospects/", CapProspects},
	{"/products/", CapInventory},
	{"/stock-movements/", CapInventory},
	{"/stocks/", CapInventory},
	{"/categories/", CapInventory},
	{"/orders/", CapOrders},
	{"/commandes/", CapOrders},
	{"/users/", CapUsers},
	{"/profiles/", CapUsers},
	{"/roles/", CapUsers},
	{"/analytics/", CapAnalytics},
	{"/statistics/", CapAnalytics},
	{"/positions/", CapGeolocation},
	{"/geolocation/", CapGeolocation},
	{"/settings/", CapConfiguration},
	{"/configuration/", CapConfiguration},
	{"/countries/", CapZoning},
	{"/regions/", CapZoning},
	{"/cities/", CapZoning},
	{"/districts/", CapZoning},
	{"/zones/", CapZoning},
}

// CapabilityForPath returns the capability gating a backend resource path.
// ok is false for paths that are not gated by any section.
func CapabilityForPath(path string) (Capability, bool) {
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	for _, pc := range pathCapabilities {
		if strings.HasPrefix(path, pc.prefix) {
			return pc.cap, true
		}
	}
	return "", false
}
