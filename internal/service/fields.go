package service

import (
	"strings"
)

// Field is one known volunteer application field. The set is closed: a form
// key that is not a Field is never persisted.
type Field int

// FieldKind controls how a field's value is translated.
type FieldKind int

const (
	KindText FieldKind = iota
	KindBool
	KindFile
)

const (
	// Contact.
	FieldFirstName Field = iota
	FieldLastName
	FieldEmail
	FieldPhone
	FieldBirthDate
	FieldAddress
	FieldCity
	FieldPostalCode
	FieldCountry
	// Education.
	FieldEducationLevel
	FieldInstitution
	FieldFieldOfStudy
	FieldGraduationYear
	// Employment.
	FieldCurrentlyEmployed
	FieldEmployer
	FieldJobTitle
	FieldWorkExperience
	// Motivational questionnaire.
	FieldMotivation
	FieldPreviousVolunteering
	FieldVolunteerExperience
	FieldAvailability
	FieldPreferredAreas
	FieldSkills
	FieldLanguages
	FieldHowDidYouHear
	FieldAgreeToTerms
	FieldConsentDataProcessing
	// Attachments.
	FieldCV
	FieldCoverLetter
	FieldIDDocument
	FieldPhoto

	fieldCount
)

type fieldSpec struct {
	ui      string
	backend string
	kind    FieldKind
}

var fieldSpecs = [fieldCount]fieldSpec{
	FieldFirstName:             {"firstName", "first_name", KindText},
	FieldLastName:              {"lastName", "last_name", KindText},
	FieldEmail:                 {"email", "email", KindText},
	FieldPhone:                 {"phone", "phone", KindText},
	FieldBirthDate:             {"birthDate", "birth_date", KindText},
	FieldAddress:               {"address", "address", KindText},
	FieldCity:                  {"city", "city", KindText},
	FieldPostalCode:            {"postalCode", "postal_code", KindText},
	FieldCountry:               {"country", "country", KindText},
	FieldEducationLevel:        {"educationLevel", "education_level", KindText},
	FieldInstitution:           {"institution", "institution", KindText},
	FieldFieldOfStudy:          {"fieldOfStudy", "field_of_study", KindText},
	FieldGraduationYear:        {"graduationYear", "graduation_year", KindText},
	FieldCurrentlyEmployed:     {"currentlyEmployed", "currently_employed", KindBool},
	FieldEmployer:              {"employer", "employer", KindText},
	FieldJobTitle:              {"jobTitle", "job_title", KindText},
	FieldWorkExperience:        {"workExperience", "work_experience", KindText},
	FieldMotivation:            {"motivation", "motivation", KindText},
	FieldPreviousVolunteering:  {"previousVolunteering", "previous_volunteering", KindBool},
	FieldVolunteerExperience:   {"volunteerExperience", "volunteer_experience", KindText},
	FieldAvailability:          {"availability", "availability", KindText},
	FieldPreferredAreas:        {"preferredAreas", "preferred_areas", KindText},
	FieldSkills:                {"skills", "skills", KindText},
	FieldLanguages:             {"languages", "languages", KindText},
	FieldHowDidYouHear:         {"howDidYouHear", "how_did_you_hear", KindText},
	FieldAgreeToTerms:          {"agreeToTerms", "agree_to_terms", KindBool},
	FieldConsentDataProcessing: {"consentDataProcessing", "consent_data_processing", KindBool},
	FieldCV:                    {"cvFile", "cv", KindFile},
	FieldCoverLetter:           {"coverLetterFile", "cover_letter", KindFile},
	FieldIDDocument:            {"idDocumentFile", "id_document", KindFile},
	FieldPhoto:                 {"photoFile", "photo", KindFile},
}

var (
	fieldsByUI      = make(map[string]Field, fieldCount)
	fieldsByBackend = make(map[string]Field, fieldCount)
)

func init() {
	for f := Field(0); f < fieldCount; f++ {
		s := fieldSpecs[f]
		if s.ui == "" || s.backend == "" {
			panic("service: field table has a hole")
		}
		if _, dup := fieldsByUI[s.ui]; dup {
			panic("service: duplicate ui field " + s.ui)
		}
		if _, dup := fieldsByBackend[s.backend]; dup {
			panic("service: duplicate backend field " + s.backend)
		}
		fieldsByUI[s.ui] = f
		fieldsByBackend[s.backend] = f
	}
}

// UIName is the form-facing name of f.
func (f Field) UIName() string { return fieldSpecs[f].ui }

// BackendName is the content store name of f.
func (f Field) BackendName() string { return fieldSpecs[f].backend }

// Kind reports how f is translated.
func (f Field) Kind() FieldKind { return fieldSpecs[f].kind }

func (f Field) String() string { return f.UIName() }

// Fields returns every known field in declaration order.
func Fields() []Field {
	out := make([]Field, 0, fieldCount)
	for f := Field(0); f < fieldCount; f++ {
		out = append(out, f)
	}
	return out
}

// FileFields returns the attachment fields.
func FileFields() []Field {
	var out []Field
	for f := Field(0); f < fieldCount; f++ {
		if f.Kind() == KindFile {
			out = append(out, f)
		}
	}
	return out
}

// FieldByUI looks up a field by its form-facing name.
func FieldByUI(name string) (Field, bool) {
	f, ok := fieldsByUI[name]
	return f, ok
}

// FieldByBackend looks up a field by its content store name.
func FieldByBackend(name string) (Field, bool) {
	f, ok := fieldsByBackend[name]
	return f, ok
}

// ForwardMap translates scalar form values to content store values. File
// fields and unknown keys are not translated; unknown keys are returned in
// dropped.
func ForwardMap(in map[string]any) (out map[string]any, dropped []string) {
	out = make(map[string]any, len(in))
	for k, v := range in {
		f, ok := FieldByUI(k)
		if !ok {
			dropped = append(dropped, k)
			continue
		}
		switch f.Kind() {
		case KindFile:
			// Files only reach the store through the uploader.
			dropped = append(dropped, k)
		case KindBool:
			out[f.BackendName()] = coerceBool(v)
		default:
			out[f.BackendName()] = v
		}
	}
	return out, dropped
}

// ReverseMap translates a stored entry back into form values. File fields
// expand into three keys: the file name, its URL and its id.
func ReverseMap(entry map[string]any) map[string]any {
	out := make(map[string]any, len(entry))
	for k, v := range entry {
		if v == nil || metadataKeys[k] {
			continue
		}
		f, ok := FieldByBackend(k)
		if !ok {
			continue
		}
		if f.Kind() != KindFile {
			out[f.UIName()] = v
			continue
		}
		name, url, id, ok := firstFile(v)
		if !ok {
			continue
		}
		ui := f.UIName()
		out[ui] = name
		out[ui+"Url"] = url
		out[ui+"Id"] = id
	}
	return out
}

// metadataKeys are system or relation fields never projected into a draft.
var metadataKeys = map[string]bool{
	"id":                     true,
	"documentId":             true,
	"createdAt":              true,
	"updatedAt":              true,
	"publishedAt":            true,
	"locale":                 true,
	"createdBy":              true,
	"updatedBy":              true,
	"localizations":          true,
	"users_permissions_user": true,
}

// coerceBool maps "true" and "yes" to true, native booleans to themselves and
// everything else to false.
func coerceBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		return s == "true" || s == "yes"
	default:
		return false
	}
}

// firstFile reads the first element of a populated media list.
func firstFile(v any) (name, url string, id int, ok bool) {
	list, isList := v.([]any)
	if !isList || len(list) == 0 {
		return "", "", 0, false
	}
	m, isMap := list[0].(map[string]any)
	if !isMap {
		return "", "", 0, false
	}
	name, _ = m["name"].(string)
	url, _ = m["url"].(string)
	switch n := m["id"].(type) {
	case float64:
		id = int(n)
	case int:
		id = n
	}
	return name, url, id, true
}
