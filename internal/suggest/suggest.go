// Package suggest maps a free-text reason for visit to likely appointment
// types and specialties by keyword matching.
package suggest

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"
)

const (
	MaxDescriptionLen = 1000
	maxResults        = 3
	maxConfidence     = 0.99

	fallbackType       = "New Patient Consultation"
	fallbackConfidence = 0.3

	Disclaimer = "These suggestions are AI-assisted and should not replace professional medical advice."
)

type TypeSuggestion struct {
	AppointmentType string   `json:"appointment_type"`
	Confidence      float64  `json:"confidence"`
	MatchedKeywords []string `json:"matched_keywords"`
}

type SpecialtySuggestion struct {
	Specialty       string   `json:"specialty"`
	Confidence      float64  `json:"confidence"`
	MatchedKeywords []string `json:"matched_keywords"`
}

type Result struct {
	Suggestions []TypeSuggestion      `json:"suggestions"`
	Specialties []SpecialtySuggestion `json:"specialties"`
	Message     string                `json:"message"`
	AIPowered   bool                  `json:"ai_powered,omitempty"`
	Disclaimer  string                `json:"disclaimer,omitempty"`
}

type typeRule struct {
	name     string
	keywords []string
	weight   float64
}

type specialtyRule struct {
	name     string
	keywords []string
}

var typeRules = []typeRule{
	{"Annual Physical", []string{"annual", "physical", "checkup", "check-up", "yearly", "routine", "wellness", "health check", "preventive"}, 1.0},
	{"Sick Visit", []string{"sick", "cold", "flu", "fever", "cough", "sore throat", "nausea", "vomiting", "diarrhea", "infection", "feeling bad", "not feeling well", "ill", "pain", "ache", "hurt"}, 0.9},
	{"Follow-up Visit", []string{"follow-up", "follow up", "followup", "recheck", "re-check", "results", "lab results", "test results", "after surgery", "post-op"}, 0.85},
	{"New Patient Consultation", []string{"new patient", "first visit", "first time", "new to", "initial", "consultation", "never been", "new doctor"}, 0.95},
	{"Specialist Referral", []string{"referral", "specialist", "referred", "second opinion", "specific doctor", "expert"}, 0.8},
	{"Preventive Screening", []string{"screening", "mammogram", "colonoscopy", "cancer screening", "blood pressure", "cholesterol", "diabetes check", "preventive"}, 0.85},
	{"Vaccination", []string{"vaccine", "vaccination", "immunization", "shot", "flu shot", "covid", "booster", "tetanus", "hpv", "shingles"}, 0.95},
	{"Telehealth Visit", []string{"telehealth", "virtual", "video", "online", "remote", "phone appointment", "virtual visit", "from home"}, 0.9},
	{"Urgent Care", []string{"urgent", "emergency", "asap", "today", "same day", "right away", "immediate", "can't wait", "serious"}, 0.85},
	{"Lab Work / Blood Draw", []string{"lab", "blood work", "blood draw", "blood test", "labs", "test", "panel", "cbc", "metabolic"}, 0.9},
}

var specialtyRules = []specialtyRule{
	{"Family Medicine", []string{"family", "general", "primary care", "pcp", "family doctor"}},
	{"Cardiology", []string{"heart", "cardiac", "chest pain", "blood pressure", "hypertension", "cholesterol", "palpitations", "heart attack"}},
	{"Dermatology", []string{"skin", "rash", "acne", "mole", "eczema", "psoriasis", "dermatitis", "skin cancer", "itching", "hives"}},
	{"Orthopedics", []string{"bone", "joint", "knee", "hip", "shoulder", "back pain", "spine", "fracture", "sports injury", "muscle", "arthritis"}},
	{"Pediatrics", []string{"child", "kid", "baby", "infant", "toddler", "pediatric", "children", "son", "daughter"}},
	{"Internal Medicine", []string{"internal", "chronic", "diabetes", "thyroid", "metabolic", "adult medicine"}},
	{"OB/GYN", []string{"pregnancy", "pregnant", "gynecology", "women", "prenatal", "pap smear", "birth control", "menstrual", "reproductive"}},
	{"Neurology", []string{"headache", "migraine", "seizure", "numbness", "tingling", "dizziness", "memory", "neurological", "brain", "nerve"}},
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

// StripTags removes anything that looks like an HTML tag and trims the result.
func StripTags(s string) string {
	return strings.TrimSpace(tagRe.ReplaceAllString(s, ""))
}

// score adds weight * (len(keyword)/len(input) + 0.5) for every keyword
// contained in input.
func score(input string, keywords []string, weight float64) (float64, []string) {
	n := float64(utf8.RuneCountInString(input))
	total := 0.0
	matched := []string{}
	for _, kw := range keywords {
		if strings.Contains(input, kw) {
			total += weight * (float64(utf8.RuneCountInString(kw))/n + 0.5)
			matched = append(matched, kw)
		}
	}
	return min(total, maxConfidence), matched
}

// Analyze scores description against the keyword tables. It returns at most
// three type and three specialty suggestions, most confident first; ties
// keep table order. With no type match it suggests a new patient
// consultation.
func Analyze(description string) Result {
	input := strings.ToLower(strings.TrimSpace(description))
	if utf8.RuneCountInString(input) < 2 {
		return Result{
			Suggestions: []TypeSuggestion{},
			Specialties: []SpecialtySuggestion{},
			Message:     "Please describe your symptoms or reason for visit.",
		}
	}

	types := []TypeSuggestion{}
	for _, rule := range typeRules {
		if c, matched := score(input, rule.keywords, rule.weight); c > 0 {
			types = append(types, TypeSuggestion{AppointmentType: rule.name, Confidence: c, MatchedKeywords: matched})
		}
	}

	specialties := []SpecialtySuggestion{}
	for _, rule := range specialtyRules {
		if c, matched := score(input, rule.keywords, 1); c > 0 {
			specialties = append(specialties, SpecialtySuggestion{Specialty: rule.name, Confidence: c, MatchedKeywords: matched})
		}
	}

	slices.SortStableFunc(types, func(a, b TypeSuggestion) int { return compareDesc(a.Confidence, b.Confidence) })
	slices.SortStableFunc(specialties, func(a, b SpecialtySuggestion) int { return compareDesc(a.Confidence, b.Confidence) })

	if len(types) == 0 {
		types = append(types, TypeSuggestion{AppointmentType: fallbackType, Confidence: fallbackConfidence, MatchedKeywords: []string{}})
	}

	return Result{
		Suggestions: types[:min(len(types), maxResults)],
		Specialties: specialties[:min(len(specialties), maxResults)],
		Message:     fmt.Sprintf("Based on your description, we recommend: %s", types[0].AppointmentType),
		AIPowered:   true,
		Disclaimer:  Disclaimer,
	}
}

func compareDesc(a, b float64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	}
	return 0
}
