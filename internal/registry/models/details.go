package models

import (
	"encoding/json"
	"strings"
	"time"

	id "qochi/pkg/domain"
	dErrors "qochi/pkg/domain-errors"
)

// Details is the kind-specific payload of a Request. The set of
// implementations is closed to this package.
type Details interface {
	Kind() RequestKind
	normalize()
	validate() error
	clone() Details
}

// BirthDetails describes the child and parents on a birth certificate.
type BirthDetails struct {
	ChildName         string    `json:"child_name"`
	ChildSex          string    `json:"child_sex"`
	BirthDate         time.Time `json:"birth_date"`
	BirthPlace        string    `json:"birth_place"`
	FatherName        string    `json:"father_name"`
	FatherNationality string    `json:"father_nationality"`
	MotherName        string    `json:"mother_name"`
	MotherNationality string    `json:"mother_nationality"`
}

func (*BirthDetails) Kind() RequestKind { return KindBirth }

func (d *BirthDetails) normalize() {
	trimAll(&d.ChildName, &d.ChildSex, &d.BirthPlace, &d.FatherName,
		&d.FatherNationality, &d.MotherName, &d.MotherNationality)
}

func (d *BirthDetails) validate() error {
	return firstMissing(
		field{"child_name", d.ChildName},
		field{"child_sex", d.ChildSex},
		field{"birth_date", dateString(d.BirthDate)},
		field{"birth_place", d.BirthPlace},
		field{"father_name", d.FatherName},
		field{"father_nationality", d.FatherNationality},
		field{"mother_name", d.MotherName},
		field{"mother_nationality", d.MotherNationality},
	)
}

func (d *BirthDetails) clone() Details { c := *d; return &c }

// DeathDetails records the circumstances of a death.
type DeathDetails struct {
	DeceasedName string    `json:"deceased_name"`
	DateOfDeath  time.Time `json:"date_of_death"`
	PlaceOfDeath string    `json:"place_of_death"`
	Cause        string    `json:"cause"`
}

func (*DeathDetails) Kind() RequestKind { return KindDeath }

func (d *DeathDetails) normalize() {
	trimAll(&d.DeceasedName, &d.PlaceOfDeath, &d.Cause)
}

func (d *DeathDetails) validate() error {
	return firstMissing(
		field{"deceased_name", d.DeceasedName},
		field{"date_of_death", dateString(d.DateOfDeath)},
		field{"place_of_death", d.PlaceOfDeath},
		field{"cause", d.Cause},
	)
}

func (d *DeathDetails) clone() Details { c := *d; return &c }

// MarriageDetails carries both spouses. SpouseMemberID links the second
// spouse when they are also a registered member.
type MarriageDetails struct {
	HusbandName        string       `json:"husband_name"`
	HusbandNationality string       `json:"husband_nationality"`
	WifeName           string       `json:"wife_name"`
	WifeNationality    string       `json:"wife_nationality"`
	MarriageDate       time.Time    `json:"marriage_date"`
	MarriagePlace      string       `json:"marriage_place"`
	SpouseMemberID     *id.MemberID `json:"spouse_member_id,omitempty"`
}

func (*MarriageDetails) Kind() RequestKind { return KindMarriage }

func (d *MarriageDetails) normalize() {
	trimAll(&d.HusbandName, &d.HusbandNationality, &d.WifeName, &d.WifeNationality, &d.MarriagePlace)
	if d.SpouseMemberID != nil && d.SpouseMemberID.IsNil() {
		d.SpouseMemberID = nil
	}
}

func (d *MarriageDetails) validate() error {
	return firstMissing(
		field{"husband_name", d.HusbandName},
		field{"husband_nationality", d.HusbandNationality},
		field{"wife_name", d.WifeName},
		field{"wife_nationality", d.WifeNationality},
		field{"marriage_date", dateString(d.MarriageDate)},
		field{"marriage_place", d.MarriagePlace},
	)
}

func (d *MarriageDetails) clone() Details {
	c := *d
	c.SpouseMemberID = cloneMemberID(d.SpouseMemberID)
	return &c
}

// DivorceDetails references the dissolved marriage.
type DivorceDetails struct {
	HusbandName    string       `json:"husband_name"`
	WifeName       string       `json:"wife_name"`
	DivorceDate    time.Time    `json:"divorce_date"`
	DivorcePlace   string       `json:"divorce_place"`
	CourtReference string       `json:"court_reference,omitempty"`
	SpouseMemberID *id.MemberID `json:"spouse_member_id,omitempty"`
}

func (*DivorceDetails) Kind() RequestKind { return KindDivorce }

func (d *DivorceDetails) normalize() {
	trimAll(&d.HusbandName, &d.WifeName, &d.DivorcePlace, &d.CourtReference)
	if d.SpouseMemberID != nil && d.SpouseMemberID.IsNil() {
		d.SpouseMemberID = nil
	}
}

func (d *DivorceDetails) validate() error {
	return firstMissing(
		field{"husband_name", d.HusbandName},
		field{"wife_name", d.WifeName},
		field{"divorce_date", dateString(d.DivorceDate)},
		field{"divorce_place", d.DivorcePlace},
	)
}

func (d *DivorceDetails) clone() Details {
	c := *d
	c.SpouseMemberID = cloneMemberID(d.SpouseMemberID)
	return &c
}

// IdentityDetails are the applicant's demographics printed on the card.
type IdentityDetails struct {
	FullName         string    `json:"full_name"`
	BirthDate        time.Time `json:"birth_date"`
	Sex              string    `json:"sex"`
	Nationality      string    `json:"nationality"`
	Occupation       string    `json:"occupation,omitempty"`
	BloodType        string    `json:"blood_type,omitempty"`
	EmergencyContact string    `json:"emergency_contact"`
}

func (*IdentityDetails) Kind() RequestKind { return KindIdentity }

func (d *IdentityDetails) normalize() {
	trimAll(&d.FullName, &d.Sex, &d.Nationality, &d.Occupation, &d.BloodType, &d.EmergencyContact)
	d.BloodType = strings.ToUpper(d.BloodType)
}

func (d *IdentityDetails) validate() error {
	return firstMissing(
		field{"full_name", d.FullName},
		field{"birth_date", dateString(d.BirthDate)},
		field{"sex", d.Sex},
		field{"nationality", d.Nationality},
		field{"emergency_contact", d.EmergencyContact},
	)
}

func (d *IdentityDetails) clone() Details { c := *d; return &c }

// NewDetails returns an empty variant for kind.
func NewDetails(kind RequestKind) (Details, error) {
	switch kind {
	case KindBirth:
		return &BirthDetails{}, nil
	case KindDeath:
		return &DeathDetails{}, nil
	case KindMarriage:
		return &MarriageDetails{}, nil
	case KindDivorce:
		return &DivorceDetails{}, nil
	case KindIdentity:
		return &IdentityDetails{}, nil
	}
	return nil, dErrors.New(dErrors.CodeValidation, "unknown request kind: "+string(kind))
}

// DecodeDetails decodes raw JSON into the variant selected by kind.
func DecodeDetails(kind RequestKind, raw []byte) (Details, error) {
	d, err := NewDetails(kind)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return d, nil
	}
	if err := json.Unmarshal(raw, d); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "malformed "+string(kind)+" details")
	}
	return d, nil
}

// SpouseOf returns the linked spouse for marriage and divorce details.
func SpouseOf(d Details) *id.MemberID {
	switch v := d.(type) {
	case *MarriageDetails:
		return v.SpouseMemberID
	case *DivorceDetails:
		return v.SpouseMemberID
	}
	return nil
}

type field struct {
	name  string
	value string
}

func firstMissing(fields ...field) error {
	for _, f := range fields {
		if f.value == "" {
			return dErrors.New(dErrors.CodeValidation, f.name+" is required")
		}
	}
	return nil
}

func trimAll(ps ...*string) {
	for _, p := range ps {
		*p = strings.TrimSpace(*p)
	}
}

func dateString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

func cloneMemberID(m *id.MemberID) *id.MemberID {
	if m == nil {
		return nil
	}
	v := *m
	return &v
}
