package tenants

import "time"

// Tenant is a renter record as served by the property-management API.
type Tenant struct {
	ID          int64      `json:"id,omitempty"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone,omitempty"`
	Unit        string     `json:"unit,omitempty"`
	LeaseStart  *time.Time `json:"lease_start,omitempty"`
	LeaseEnd    *time.Time `json:"lease_end,omitempty"`
	MonthlyRent string     `json:"monthly_rent,omitempty"` // decimal string, e.g. "1250.00"
}

func (t Tenant) FullName() string {
	switch {
	case t.FirstName == "":
		return t.LastName
	case t.LastName == "":
		return t.FirstName
	}
	return t.FirstName + " " + t.LastName
}

// Page is one page of a limit/offset listing
type Page struct {
	Count   int       `json:"count"`
	Results []*Tenant `json:"results"`
}
