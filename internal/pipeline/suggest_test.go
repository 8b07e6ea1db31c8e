package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/careers-cli/internal/model"
)

func TestNormalizeSuggestion_MatchWithoutIDBecomesNew(t *testing.T) {
	s := &model.ProgramSuggestion{
		Matched:     true,
		Name:        "Summer Analyst Programme",
		ProgramType: model.ProgramTypeInternship,
		Confidence:  0.9,
	}

	normalizeSuggestion(s, &model.ExtractedRole{Title: "Summer Analyst"}, nil)

	assert.False(t, s.Matched)
	assert.Nil(t, s.ExistingProgramID)
	assert.Equal(t, "Summer Analyst Programme", s.Name)
}

func TestNormalizeSuggestion_MatchToUnknownProgramBecomesNew(t *testing.T) {
	ghost := int64(99)
	s := &model.ProgramSuggestion{
		Matched:           true,
		ExistingProgramID: &ghost,
		Name:              "Insight Week",
		ProgramType:       model.ProgramTypeInsight,
	}
	programs := []model.Program{{ID: 1, Name: "Graduate Scheme"}}

	normalizeSuggestion(s, &model.ExtractedRole{Title: "Insight Week"}, programs)

	assert.False(t, s.Matched)
	assert.Nil(t, s.ExistingProgramID)
}

func TestNormalizeSuggestion_ValidMatchKept(t *testing.T) {
	id := int64(1)
	s := &model.ProgramSuggestion{
		Matched:           true,
		ExistingProgramID: &id,
		Name:              "Graduate Scheme",
		ProgramType:       model.ProgramTypeGraduate,
	}
	programs := []model.Program{{ID: 1, Name: "Graduate Scheme"}}

	normalizeSuggestion(s, &model.ExtractedRole{Title: "Graduate Analyst"}, programs)

	assert.True(t, s.Matched)
	assert.Equal(t, id, *s.ExistingProgramID)
}

func TestNormalizeSuggestion_FillsNameAndType(t *testing.T) {
	progName := "Spring Week"
	s := &model.ProgramSuggestion{ProgramType: model.ProgramType("summer-thing")}

	normalizeSuggestion(s, &model.ExtractedRole{Title: "Spring Intern", ProgramName: &progName}, nil)

	assert.Equal(t, "Spring Week", s.Name)
	assert.Equal(t, model.ProgramTypeOther, s.ProgramType)
}

func TestNormalizeSuggestion_UnmatchedClearsStrayID(t *testing.T) {
	id := int64(1)
	s := &model.ProgramSuggestion{
		Matched:           false,
		ExistingProgramID: &id,
		Name:              "New Programme",
		ProgramType:       model.ProgramTypeOther,
	}

	normalizeSuggestion(s, &model.ExtractedRole{Title: "Role"}, []model.Program{{ID: 1}})

	assert.Nil(t, s.ExistingProgramID)
}
