package model

import "time"

type CustomerStatus string

const (
	CustomerActive    CustomerStatus = "Active"
	CustomerInactive  CustomerStatus = "Inactive"
	CustomerSuspended CustomerStatus = "Suspended"
)

func (s CustomerStatus) Valid() bool {
	return s == CustomerActive || s == CustomerInactive || s == CustomerSuspended
}

type Customer struct {
	ID             string         `db:"customer_id"     json:"CustomerID"`
	FirstName      string         `db:"first_name"      json:"FirstName"`
	LastName       string         `db:"last_name"       json:"LastName"`
	PhoneNumber    string         `db:"phone_number"    json:"PhoneNumber"`
	Email          string         `db:"email"           json:"Email"`
	ServiceAddress string         `db:"service_address" json:"ServiceAddress"`
	City           string         `db:"city"            json:"City"`
	ZipCode        string         `db:"zip_code"        json:"ZipCode"`
	Status         CustomerStatus `db:"account_status"  json:"AccountStatus"`
	CreatedAt      time.Time      `db:"created_at"      json:"CreatedAt"`
	UpdatedAt      time.Time      `db:"updated_at"      json:"UpdatedAt"`
}
