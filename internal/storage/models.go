// -------------------------------------------------------------------------------
// Models - Patient Records
//
// Author: Alex Freidah
//
// GORM model and request types for the patient table. Create requests carry
// only caller-supplied fields; identifiers and timestamps are assigned by the
// store that receives the insert. Update requests are partial: nil fields are
// left untouched.
// -------------------------------------------------------------------------------

package storage

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// dateLayout is the wire and storage format for calendar dates.
const dateLayout = "2006-01-02"

// -------------------------------------------------------------------------
// DATE
// -------------------------------------------------------------------------

// Date is a calendar date without time-of-day, serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate returns the Date for the given calendar day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return Date{t}, nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(dateLayout)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan implements sql.Scanner. Postgres returns time.Time for date columns;
// SQLite may return either a parsed time or the raw text.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = NewDate(v.Year(), v.Month(), v.Day())
		return nil
	case string:
		return d.scanText(v)
	case []byte:
		return d.scanText(string(v))
	case nil:
		*d = Date{}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

func (d *Date) scanText(s string) error {
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// -------------------------------------------------------------------------
// PATIENT
// -------------------------------------------------------------------------

// Patient is one row of patients_table.
type Patient struct {
	PatientID          int64     `gorm:"column:patient_id;primaryKey;autoIncrement" json:"patient_id"`
	FirstName          string    `gorm:"column:first_name;not null" json:"first_name"`
	LastName           string    `gorm:"column:last_name;not null" json:"last_name"`
	MiddleName         *string   `gorm:"column:middle_name" json:"middle_name"`
	BirthDate          Date      `gorm:"column:birth_date;type:date;not null" json:"birth_date"`
	CsdIDOrPwdID       *string   `gorm:"column:csd_id_or_pwd_id;uniqueIndex" json:"csd_id_or_pwd_id"`
	MobileNumber       *string   `gorm:"column:mobile_number" json:"mobile_number"`
	ResidentialAddress *string   `gorm:"column:residential_address" json:"residential_address"`
	IsArchived         bool      `gorm:"column:is_archived;not null;default:false" json:"is_archived"`
	CreatedAt          time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt          time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// TableName pins the table name shared with the desktop build.
func (Patient) TableName() string {
	return "patients_table"
}

// CreateRequest returns the create-equivalent of an existing record, without
// its identifier or timestamps. The archived flag is carried over.
func (p Patient) CreateRequest() CreatePatientRequest {
	return CreatePatientRequest{
		FirstName:          p.FirstName,
		LastName:           p.LastName,
		MiddleName:         p.MiddleName,
		BirthDate:          p.BirthDate,
		CsdIDOrPwdID:       p.CsdIDOrPwdID,
		MobileNumber:       p.MobileNumber,
		ResidentialAddress: p.ResidentialAddress,
		IsArchived:         p.IsArchived,
	}
}

// -------------------------------------------------------------------------
// REQUESTS
// -------------------------------------------------------------------------

// CreatePatientRequest holds the caller-supplied fields of a new patient.
type CreatePatientRequest struct {
	FirstName          string  `json:"first_name"`
	LastName           string  `json:"last_name"`
	MiddleName         *string `json:"middle_name,omitempty"`
	BirthDate          Date    `json:"birth_date"`
	CsdIDOrPwdID       *string `json:"csd_id_or_pwd_id,omitempty"`
	MobileNumber       *string `json:"mobile_number,omitempty"`
	ResidentialAddress *string `json:"residential_address,omitempty"`
	IsArchived         bool    `json:"is_archived,omitempty"`
}

// Validate checks required fields.
func (r CreatePatientRequest) Validate() error {
	var missing []string
	if strings.TrimSpace(r.FirstName) == "" {
		missing = append(missing, "first_name")
	}
	if strings.TrimSpace(r.LastName) == "" {
		missing = append(missing, "last_name")
	}
	if r.BirthDate.IsZero() {
		missing = append(missing, "birth_date")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}
	return nil
}

// toModel builds the row to insert.
func (r CreatePatientRequest) toModel() *Patient {
	return &Patient{
		FirstName:          r.FirstName,
		LastName:           r.LastName,
		MiddleName:         r.MiddleName,
		BirthDate:          r.BirthDate,
		CsdIDOrPwdID:       r.CsdIDOrPwdID,
		MobileNumber:       r.MobileNumber,
		ResidentialAddress: r.ResidentialAddress,
		IsArchived:         r.IsArchived,
	}
}

// UpdatePatientRequest holds a partial update; nil fields are unchanged.
type UpdatePatientRequest struct {
	FirstName          *string `json:"first_name,omitempty"`
	LastName           *string `json:"last_name,omitempty"`
	MiddleName         *string `json:"middle_name,omitempty"`
	BirthDate          *Date   `json:"birth_date,omitempty"`
	CsdIDOrPwdID       *string `json:"csd_id_or_pwd_id,omitempty"`
	MobileNumber       *string `json:"mobile_number,omitempty"`
	ResidentialAddress *string `json:"residential_address,omitempty"`
	IsArchived         *bool   `json:"is_archived,omitempty"`
}

// Validate rejects updates that would blank a required field.
func (r UpdatePatientRequest) Validate() error {
	if r.FirstName != nil && strings.TrimSpace(*r.FirstName) == "" {
		return fmt.Errorf("%w: first_name cannot be empty", ErrInvalidRequest)
	}
	if r.LastName != nil && strings.TrimSpace(*r.LastName) == "" {
		return fmt.Errorf("%w: last_name cannot be empty", ErrInvalidRequest)
	}
	if r.BirthDate != nil && r.BirthDate.IsZero() {
		return fmt.Errorf("%w: birth_date cannot be empty", ErrInvalidRequest)
	}
	return nil
}

// changes returns the column assignments for the set fields.
func (r UpdatePatientRequest) changes() map[string]any {
	m := make(map[string]any)
	if r.FirstName != nil {
		m["first_name"] = *r.FirstName
	}
	if r.LastName != nil {
		m["last_name"] = *r.LastName
	}
	if r.MiddleName != nil {
		m["middle_name"] = *r.MiddleName
	}
	if r.BirthDate != nil {
		m["birth_date"] = *r.BirthDate
	}
	if r.CsdIDOrPwdID != nil {
		m["csd_id_or_pwd_id"] = *r.CsdIDOrPwdID
	}
	if r.MobileNumber != nil {
		m["mobile_number"] = *r.MobileNumber
	}
	if r.ResidentialAddress != nil {
		m["residential_address"] = *r.ResidentialAddress
	}
	if r.IsArchived != nil {
		m["is_archived"] = *r.IsArchived
	}
	return m
}
