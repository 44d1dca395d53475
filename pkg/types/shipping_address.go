package types

import "strings"

// ShippingAddress is the recipient snapshot captured at order time. It is
// stored as jsonb so later edits to the customer's address book never
// rewrite order history.
type ShippingAddress struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	ZipCode  string `json:"zip_code"`
	Address1 string `json:"address1"`
	Address2 string `json:"address2,omitempty"`
	City     string `json:"city,omitempty"`
	Country  string `json:"country,omitempty"`
}

// Validate checks the fields suppliers require to accept a parcel.
func (s ShippingAddress) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errMissing("name")
	}
	if strings.TrimSpace(s.Phone) == "" {
		return errMissing("phone")
	}
	if strings.TrimSpace(s.Address1) == "" {
		return errMissing("address1")
	}
	if strings.TrimSpace(s.ZipCode) == "" {
		return errMissing("zip_code")
	}
	return nil
}

type missingFieldError string

func (e missingFieldError) Error() string {
	return "shipping address: missing " + string(e)
}

func errMissing(field string) error {
	return missingFieldError(field)
}
