package order

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

var (
	emailPattern   = regexp.MustCompile(`^\S+@\S+\.\S+$`)
	phonePattern   = regexp.MustCompile(`^\d{10}$`)
	pincodePattern = regexp.MustCompile(`^\d{6}$`)
)

// ValidationError maps every invalid billing field to a message.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("invalid billing info: %s", strings.Join(keys, ", "))
}

func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// Normalize trims fields and strips whitespace from the phone number.
func (b Billing) Normalize() Billing {
	return Billing{
		Name:    strings.TrimSpace(b.Name),
		Email:   strings.TrimSpace(b.Email),
		Phone:   stripSpaces(b.Phone),
		Address: strings.TrimSpace(b.Address),
		City:    strings.TrimSpace(b.City),
		State:   strings.TrimSpace(b.State),
		Pincode: stripSpaces(b.Pincode),
	}
}

// Validate checks a normalized billing form and reports every failing field
// at once. Address, state and pincode are only required when requireAddress
// is set.
func (b Billing) Validate(requireAddress bool) error {
	errs := map[string]string{}
	if b.Name == "" {
		errs["name"] = "Name is required"
	}
	switch {
	case b.Email == "":
		errs["email"] = "Email is required"
	case !emailPattern.MatchString(b.Email):
		errs["email"] = "Email is invalid"
	}
	switch {
	case b.Phone == "":
		errs["phone"] = "Phone number is required"
	case !phonePattern.MatchString(b.Phone):
		errs["phone"] = "Phone number must be 10 digits"
	}
	if b.City == "" {
		errs["city"] = "City is required"
	}
	if requireAddress {
		if b.Address == "" {
			errs["address"] = "Address is required"
		}
		if b.State == "" {
			errs["state"] = "State is required"
		}
		switch {
		case b.Pincode == "":
			errs["pincode"] = "Pincode is required"
		case !pincodePattern.MatchString(b.Pincode):
			errs["pincode"] = "Pincode must be 6 digits"
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
