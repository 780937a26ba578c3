package patient

import (
	"fmt"
	"net/mail"
	"reflect"
	"regexp"
	"time"

	"github.com/mesikahq/patient-care-portal/internal/types"
)

var regNumberPattern = regexp.MustCompile(`^[1-9][0-9]{5}$`)

// ValidRegNumber reports whether s has the shape of an allocated registration
// number: six ASCII digits without a leading zero.
func ValidRegNumber(s string) bool {
	return regNumberPattern.MatchString(s)
}

// Fields are the editable parts of a patient registration. Every field is
// optional; a nil pointer means "not provided", which lets Update replace only
// the fields present in a request.
type Fields struct {
	// Patient information
	FirstName  *string     `json:"firstName,omitempty" bson:"firstName,omitempty"`
	MiddleName *string     `json:"middleName,omitempty" bson:"middleName,omitempty"`
	LastName   *string     `json:"lastName,omitempty" bson:"lastName,omitempty"`
	Gender     *string     `json:"gender,omitempty" bson:"gender,omitempty"`
	Age        *int        `json:"age,omitempty" bson:"age,omitempty"`
	DOB        *types.Date `json:"dob,omitempty" bson:"dob,omitempty"`
	PContactNo *string     `json:"pContactNo,omitempty" bson:"pContactNo,omitempty"`
	Address    *string     `json:"address,omitempty" bson:"address,omitempty"`
	Email      *string     `json:"email,omitempty" bson:"email,omitempty"`
	BloodGroup *string     `json:"bloodGroup,omitempty" bson:"bloodGroup,omitempty"`
	Height     *float64    `json:"height,omitempty" bson:"height,omitempty"`
	Weight     *float64    `json:"weight,omitempty" bson:"weight,omitempty"`

	// Emergency contact
	EFirstName   *string `json:"eFirstName,omitempty" bson:"eFirstName,omitempty"`
	EMiddleName  *string `json:"eMiddleName,omitempty" bson:"eMiddleName,omitempty"`
	ELastName    *string `json:"eLastName,omitempty" bson:"eLastName,omitempty"`
	EContactNo   *string `json:"eContactNo,omitempty" bson:"eContactNo,omitempty"`
	Relationship *string `json:"relationship,omitempty" bson:"relationship,omitempty"`
	EAddress     *string `json:"eAddress,omitempty" bson:"eAddress,omitempty"`

	// Admission details
	AdmissionType    *string     `json:"admissionType,omitempty" bson:"admissionType,omitempty"`
	AdmissionDate    *types.Date `json:"admissionDate,omitempty" bson:"admissionDate,omitempty"`
	Department       *string     `json:"department,omitempty" bson:"department,omitempty"`
	WardType         *string     `json:"wardType,omitempty" bson:"wardType,omitempty"`
	PrimaryComplaint *string     `json:"primaryComplaint,omitempty" bson:"primaryComplaint,omitempty"`
	AdditionalNotes  *string     `json:"additionalNotes,omitempty" bson:"additionalNotes,omitempty"`
}

// Record is a registered patient. RegNumber and CreatedAt are set once by
// Register and never change afterwards.
type Record struct {
	RegNumber string `json:"regNumber" bson:"regNumber"`
	Fields    `bson:",inline"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// Overlay copies every provided (non-nil) field of src onto f.
func (f *Fields) Overlay(src Fields) {
	dst := reflect.ValueOf(f).Elem()
	from := reflect.ValueOf(src)
	for i := 0; i < from.NumField(); i++ {
		if field := from.Field(i); !field.IsNil() {
			dst.Field(i).Set(field)
		}
	}
}

// Empty reports whether no field is provided.
func (f Fields) Empty() bool {
	v := reflect.ValueOf(f)
	for i := 0; i < v.NumField(); i++ {
		if !v.Field(i).IsNil() {
			return false
		}
	}
	return true
}

// Validate checks the shape of the provided fields. Cross-field rules are not
// enforced; registration desks routinely submit partial forms.
func (f Fields) Validate() error {
	if f.Age != nil && (*f.Age < 0 || *f.Age > 150) {
		return fmt.Errorf("%w: age must be between 0 and 150", ErrInvalidPatientData)
	}
	if f.Height != nil && *f.Height < 0 {
		return fmt.Errorf("%w: height must not be negative", ErrInvalidPatientData)
	}
	if f.Weight != nil && *f.Weight < 0 {
		return fmt.Errorf("%w: weight must not be negative", ErrInvalidPatientData)
	}
	if f.Email != nil && *f.Email != "" {
		if _, err := mail.ParseAddress(*f.Email); err != nil {
			return fmt.Errorf("%w: invalid email address", ErrInvalidPatientData)
		}
	}
	if f.DOB != nil && !f.DOB.IsZero() && f.DOB.After(time.Now()) {
		return fmt.Errorf("%w: date of birth is in the future", ErrInvalidPatientData)
	}
	return nil
}
