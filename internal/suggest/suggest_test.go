package suggest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeShortInput(t *testing.T) {
	for _, in := range []string{"", " ", "a"} {
		res := Analyze(in)
		assert.Empty(t, res.Suggestions)
		assert.Empty(t, res.Specialties)
		assert.False(t, res.AIPowered)
		assert.Equal(t, "Please describe your symptoms or reason for visit.", res.Message)
	}
}

func TestAnalyzeFallsBackToConsultation(t *testing.T) {
	res := Analyze("zzzz")
	require.Len(t, res.Suggestions, 1)
	assert.Equal(t, "New Patient Consultation", res.Suggestions[0].AppointmentType)
	assert.InDelta(t, 0.3, res.Suggestions[0].Confidence, 1e-9)
	assert.Empty(t, res.Specialties)
	assert.True(t, res.AIPowered)
	assert.Equal(t, Disclaimer, res.Disclaimer)
}

func TestAnalyzeScoresKeywords(t *testing.T) {
	// "fever" is 5 of 10 runes: 0.9 * (0.5 + 0.5)
	res := Analyze("Fever now!")
	require.NotEmpty(t, res.Suggestions)
	top := res.Suggestions[0]
	assert.Equal(t, "Sick Visit", top.AppointmentType)
	assert.InDelta(t, 0.9, top.Confidence, 1e-9)
	assert.Equal(t, []string{"fever"}, top.MatchedKeywords)
	assert.Equal(t, "Based on your description, we recommend: Sick Visit", res.Message)
}

func TestAnalyzeCapsAndOrders(t *testing.T) {
	res := Analyze("my child has a rash, fever and cough and needs a flu shot")

	assert.LessOrEqual(t, len(res.Suggestions), 3)
	for i, s := range res.Suggestions {
		assert.LessOrEqual(t, s.Confidence, 0.99)
		if i > 0 {
			assert.GreaterOrEqual(t, res.Suggestions[i-1].Confidence, s.Confidence)
		}
	}
	assert.Equal(t, "Sick Visit", res.Suggestions[0].AppointmentType)

	specialties := make([]string, len(res.Specialties))
	for i, s := range res.Specialties {
		specialties[i] = s.Specialty
	}
	assert.ElementsMatch(t, []string{"Dermatology", "Pediatrics"}, specialties)
}

func TestStripTags(t *testing.T) {
	assert.Equal(t, "headache since monday", StripTags("  <b>headache</b> since <br/>monday "))
	assert.Equal(t, "plain", StripTags("plain"))
}
