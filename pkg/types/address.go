package types

import (
	"fmt"
	"strings"
)

// Address is the composed street/city/state/zip location of a dumpster drop.
// Stored as address_* columns on the owning row.
type Address struct {
	Street string `json:"street" gorm:"column:street;not null" validate:"required,max=200"`
	City   string `json:"city" gorm:"column:city;not null" validate:"required,max=100"`
	State  string `json:"state" gorm:"column:state;not null" validate:"required,max=50"`
	Zip    string `json:"zip" gorm:"column:zip;not null" validate:"required,max=20"`
}

// Normalize trims whitespace and upper-cases the state code.
func (a Address) Normalize() Address {
	return Address{
		Street: strings.TrimSpace(a.Street),
		City:   strings.TrimSpace(a.City),
		State:  strings.ToUpper(strings.TrimSpace(a.State)),
		Zip:    strings.TrimSpace(a.Zip),
	}
}

// MissingParts lists the json names of empty components.
func (a Address) MissingParts() []string {
	n := a.Normalize()
	var missing []string
	if n.Street == "" {
		missing = append(missing, "street")
	}
	if n.City == "" {
		missing = append(missing, "city")
	}
	if n.State == "" {
		missing = append(missing, "state")
	}
	if n.Zip == "" {
		missing = append(missing, "zip")
	}
	return missing
}

// String renders the single-line form used in emails.
func (a Address) String() string {
	n := a.Normalize()
	return fmt.Sprintf("%s, %s, %s %s", n.Street, n.City, n.State, n.Zip)
}
