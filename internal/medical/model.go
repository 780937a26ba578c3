package medical

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mesikahq/patient-care-portal/internal/types"
)

var (
	ErrMedicalNotFound = errors.New("medical information not found")
	ErrInvalidSection  = errors.New("invalid section")
	ErrInvalidData     = errors.New("invalid medical data")
)

// Section names accepted by UpdateSection.
const (
	SectionMedicalHistory  = "medicalHistory"
	SectionAdmission       = "admission"
	SectionVitals          = "vitals"
	SectionDiagnosticTests = "diagnosticTests"
	SectionTreatmentPlan   = "treatmentPlan"
	SectionNotes           = "notes"
	SectionConsent         = "consent"
	SectionInfrastructure  = "infrastructure"
	SectionDischarge       = "discharge"
)

var sections = []string{
	SectionMedicalHistory,
	SectionAdmission,
	SectionVitals,
	SectionDiagnosticTests,
	SectionTreatmentPlan,
	SectionNotes,
	SectionConsent,
	SectionInfrastructure,
	SectionDischarge,
}

// Sections returns the section names in document order.
func Sections() []string {
	return append([]string(nil), sections...)
}

func ValidSection(name string) bool {
	for _, s := range sections {
		if s == name {
			return true
		}
	}
	return false
}

type Allergies struct {
	Medication    string `json:"medication" bson:"medication"`
	Food          string `json:"food" bson:"food"`
	Environmental string `json:"environmental" bson:"environmental"`
}

// MedicalHistory and Admission are stored flat on the record; they are
// sections only for the purpose of UpdateSection.
type MedicalHistory struct {
	MedicalConditions    string    `json:"medicalConditions" bson:"medicalConditions"`
	PastSurgeries        string    `json:"pastSurgeries" bson:"pastSurgeries"`
	Allergies            Allergies `json:"allergies" bson:"allergies"`
	OngoingMedications   string    `json:"ongoingMedications" bson:"ongoingMedications"`
	FamilyMedicalHistory string    `json:"familyMedicalHistory" bson:"familyMedicalHistory"`
}

type Admission struct {
	AdmissionDateTime *types.Date `json:"admissionDateTime" bson:"admissionDateTime"`
	Department        string      `json:"department" bson:"department"`
	ReferredBy        string      `json:"referredBy" bson:"referredBy"`
	AdmittingDoctor   string      `json:"admittingDoctor" bson:"admittingDoctor"`
	ChiefComplaint    string      `json:"chiefComplaint" bson:"chiefComplaint"`
	InitialDiagnosis  string      `json:"initialDiagnosis" bson:"initialDiagnosis"`
}

type Vitals struct {
	BloodPressure    string `json:"bloodPressure" bson:"bloodPressure"`
	HeartRate        string `json:"heartRate" bson:"heartRate"`
	RespiratoryRate  string `json:"respiratoryRate" bson:"respiratoryRate"`
	Temperature      string `json:"temperature" bson:"temperature"`
	OxygenSaturation string `json:"oxygenSaturation" bson:"oxygenSaturation"`
	Weight           string `json:"weight" bson:"weight"`
	Height           string `json:"height" bson:"height"`
}

type DiagnosticTests struct {
	BloodTests string `json:"bloodTests" bson:"bloodTests"`
	Imaging    string `json:"imaging" bson:"imaging"`
	ECG        string `json:"ecg" bson:"ecg"`
	OtherTests string `json:"otherTests" bson:"otherTests"`
}

type TreatmentPlan struct {
	Medications         string `json:"medications" bson:"medications"`
	IVFluids            string `json:"ivFluids" bson:"ivFluids"`
	SurgicalPlan        string `json:"surgicalPlan" bson:"surgicalPlan"`
	DietaryRestrictions string `json:"dietaryRestrictions" bson:"dietaryRestrictions"`
	SupportServices     string `json:"supportServices" bson:"supportServices"`
}

type Notes struct {
	ProgressNotes        string `json:"progressNotes" bson:"progressNotes"`
	ClinicalObservations string `json:"clinicalObservations" bson:"clinicalObservations"`
	NursingAssessments   string `json:"nursingAssessments" bson:"nursingAssessments"`
	HandoverNotes        string `json:"handoverNotes" bson:"handoverNotes"`
}

type Consent struct {
	SurgeryConsent    bool   `json:"surgeryConsent" bson:"surgeryConsent"`
	AnesthesiaConsent bool   `json:"anesthesiaConsent" bson:"anesthesiaConsent"`
	TreatmentConsent  bool   `json:"treatmentConsent" bson:"treatmentConsent"`
	IDProofSubmitted  bool   `json:"idProofSubmitted" bson:"idProofSubmitted"`
	InsuranceDetails  string `json:"insuranceDetails" bson:"insuranceDetails"`
}

type Infrastructure struct {
	BedNumber     string `json:"bedNumber" bson:"bedNumber"`
	RoomType      string `json:"roomType" bson:"roomType"`
	AssignedNurse string `json:"assignedNurse" bson:"assignedNurse"`
}

type Discharge struct {
	DischargeSummary     string `json:"dischargeSummary" bson:"dischargeSummary"`
	FinalDiagnosis       string `json:"finalDiagnosis" bson:"finalDiagnosis"`
	DischargeMedications string `json:"dischargeMedications" bson:"dischargeMedications"`
	FollowUpInstructions string `json:"followUpInstructions" bson:"followUpInstructions"`
	ReferralDetails      string `json:"referralDetails" bson:"referralDetails"`
}

// Record is the medical information kept for one patient. The zero value of
// every section is its default: empty strings and false consents.
type Record struct {
	RegNumber string `json:"regNumber" bson:"regNumber"`

	MedicalHistory `bson:",inline"`
	Admission      `bson:",inline"`

	Vitals          Vitals          `json:"vitals" bson:"vitals"`
	DiagnosticTests DiagnosticTests `json:"diagnosticTests" bson:"diagnosticTests"`
	TreatmentPlan   TreatmentPlan   `json:"treatmentPlan" bson:"treatmentPlan"`
	Notes           Notes           `json:"notes" bson:"notes"`
	Consent         Consent         `json:"consent" bson:"consent"`
	Infrastructure  Infrastructure  `json:"infrastructure" bson:"infrastructure"`
	Discharge       Discharge       `json:"discharge" bson:"discharge"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Update is a SaveMedical request body. Each non-nil key replaces the whole
// corresponding value on the record; nested objects are not merged.
type Update struct {
	MedicalConditions    *string     `json:"medicalConditions,omitempty"`
	PastSurgeries        *string     `json:"pastSurgeries,omitempty"`
	Allergies            *Allergies  `json:"allergies,omitempty"`
	OngoingMedications   *string     `json:"ongoingMedications,omitempty"`
	FamilyMedicalHistory *string     `json:"familyMedicalHistory,omitempty"`
	AdmissionDateTime    *types.Date `json:"admissionDateTime,omitempty"`
	Department           *string     `json:"department,omitempty"`
	ReferredBy           *string     `json:"referredBy,omitempty"`
	AdmittingDoctor      *string     `json:"admittingDoctor,omitempty"`
	ChiefComplaint       *string     `json:"chiefComplaint,omitempty"`
	InitialDiagnosis     *string     `json:"initialDiagnosis,omitempty"`

	Vitals          *Vitals          `json:"vitals,omitempty"`
	DiagnosticTests *DiagnosticTests `json:"diagnosticTests,omitempty"`
	TreatmentPlan   *TreatmentPlan   `json:"treatmentPlan,omitempty"`
	Notes           *Notes           `json:"notes,omitempty"`
	Consent         *Consent         `json:"consent,omitempty"`
	Infrastructure  *Infrastructure  `json:"infrastructure,omitempty"`
	Discharge       *Discharge       `json:"discharge,omitempty"`
}

// NewRecord returns a record for regNumber with every section at its default.
func NewRecord(regNumber string, now time.Time) *Record {
	return &Record{
		RegNumber: regNumber,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ApplyUpdate performs the top-level replace used by SaveMedical. A nested
// object in the update replaces the stored one entirely, so leaves it omits
// are reset to their defaults.
func ApplyUpdate(r *Record, u Update, now time.Time) {
	setString(&r.MedicalConditions, u.MedicalConditions)
	setString(&r.PastSurgeries, u.PastSurgeries)
	if u.Allergies != nil {
		r.Allergies = *u.Allergies
	}
	setString(&r.OngoingMedications, u.OngoingMedications)
	setString(&r.FamilyMedicalHistory, u.FamilyMedicalHistory)

	if u.AdmissionDateTime != nil {
		if u.AdmissionDateTime.IsZero() {
			r.AdmissionDateTime = nil
		} else {
			d := *u.AdmissionDateTime
			r.AdmissionDateTime = &d
		}
	}
	setString(&r.Department, u.Department)
	setString(&r.ReferredBy, u.ReferredBy)
	setString(&r.AdmittingDoctor, u.AdmittingDoctor)
	setString(&r.ChiefComplaint, u.ChiefComplaint)
	setString(&r.InitialDiagnosis, u.InitialDiagnosis)

	if u.Vitals != nil {
		r.Vitals = *u.Vitals
	}
	if u.DiagnosticTests != nil {
		r.DiagnosticTests = *u.DiagnosticTests
	}
	if u.TreatmentPlan != nil {
		r.TreatmentPlan = *u.TreatmentPlan
	}
	if u.Notes != nil {
		r.Notes = *u.Notes
	}
	if u.Consent != nil {
		r.Consent = *u.Consent
	}
	if u.Infrastructure != nil {
		r.Infrastructure = *u.Infrastructure
	}
	if u.Discharge != nil {
		r.Discharge = *u.Discharge
	}

	r.UpdatedAt = now
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// MergeSection overlays a partial section onto r. Only the leaves present in
// data change; nested objects such as allergies merge recursively.
func MergeSection(r *Record, section string, data json.RawMessage, now time.Time) error {
	target, err := sectionTarget(r, section)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}

	// Decode into a copy so a malformed body leaves r untouched.
	merged, err := decodeOnto(target, data)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidData, section, err)
	}
	assignSection(r, section, merged)
	r.UpdatedAt = now
	return nil
}

func sectionTarget(r *Record, section string) (interface{}, error) {
	switch section {
	case SectionMedicalHistory:
		return r.MedicalHistory, nil
	case SectionAdmission:
		return r.Admission, nil
	case SectionVitals:
		return r.Vitals, nil
	case SectionDiagnosticTests:
		return r.DiagnosticTests, nil
	case SectionTreatmentPlan:
		return r.TreatmentPlan, nil
	case SectionNotes:
		return r.Notes, nil
	case SectionConsent:
		return r.Consent, nil
	case SectionInfrastructure:
		return r.Infrastructure, nil
	case SectionDischarge:
		return r.Discharge, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidSection, section)
}

func decodeOnto(current interface{}, data json.RawMessage) (interface{}, error) {
	switch v := current.(type) {
	case MedicalHistory:
		err := json.Unmarshal(data, &v)
		return v, err
	case Admission:
		if v.AdmissionDateTime != nil {
			d := *v.AdmissionDateTime
			v.AdmissionDateTime = &d
		}
		err := json.Unmarshal(data, &v)
		if v.AdmissionDateTime != nil && v.AdmissionDateTime.IsZero() {
			v.AdmissionDateTime = nil
		}
		return v, err
	case Vitals:
		err := json.Unmarshal(data, &v)
		return v, err
	case DiagnosticTests:
		err := json.Unmarshal(data, &v)
		return v, err
	case TreatmentPlan:
		err := json.Unmarshal(data, &v)
		return v, err
	case Notes:
		err := json.Unmarshal(data, &v)
		return v, err
	case Consent:
		err := json.Unmarshal(data, &v)
		return v, err
	case Infrastructure:
		err := json.Unmarshal(data, &v)
		return v, err
	case Discharge:
		err := json.Unmarshal(data, &v)
		return v, err
	}
	return nil, fmt.Errorf("unsupported section type %T", current)
}

func assignSection(r *Record, section string, value interface{}) {
	switch section {
	case SectionMedicalHistory:
		r.MedicalHistory = value.(MedicalHistory)
	case SectionAdmission:
		r.Admission = value.(Admission)
	case SectionVitals:
		r.Vitals = value.(Vitals)
	case SectionDiagnosticTests:
		r.DiagnosticTests = value.(DiagnosticTests)
	case SectionTreatmentPlan:
		r.TreatmentPlan = value.(TreatmentPlan)
	case SectionNotes:
		r.Notes = value.(Notes)
	case SectionConsent:
		r.Consent = value.(Consent)
	case SectionInfrastructure:
		r.Infrastructure = value.(Infrastructure)
	case SectionDischarge:
		r.Discharge = value.(Discharge)
	}
}

// Summary is the admission overview row returned by Store.Summary.
type Summary struct {
	RegNumber         string      `json:"regNumber" bson:"regNumber"`
	Department        string      `json:"department" bson:"department"`
	AdmissionDateTime *types.Date `json:"admissionDateTime" bson:"admissionDateTime"`
	ChiefComplaint    string      `json:"chiefComplaint" bson:"chiefComplaint"`
	InitialDiagnosis  string      `json:"initialDiagnosis" bson:"initialDiagnosis"`
	CreatedAt         time.Time   `json:"createdAt" bson:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt" bson:"updatedAt"`
}

// SummaryFilter narrows Summary. Zero values match everything; DateFrom and
// DateTo bound createdAt inclusively.
type SummaryFilter struct {
	Department string
	DateFrom   time.Time
	DateTo     time.Time
}

// Matches reports whether r passes the filter.
func (f SummaryFilter) Matches(r *Record) bool {
	if f.Department != "" && r.Department != f.Department {
		return false
	}
	if !f.DateFrom.IsZero() && r.CreatedAt.Before(f.DateFrom) {
		return false
	}
	if !f.DateTo.IsZero() && r.CreatedAt.After(f.DateTo) {
		return false
	}
	return true
}

// SummaryOf projects r onto its summary row.
func SummaryOf(r *Record) Summary {
	return Summary{
		RegNumber:         r.RegNumber,
		Department:        r.Department,
		AdmissionDateTime: r.AdmissionDateTime,
		ChiefComplaint:    r.ChiefComplaint,
		InitialDiagnosis:  r.InitialDiagnosis,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}
