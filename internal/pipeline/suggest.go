package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/careers-cli/internal/model"
	"github.com/sells-group/careers-cli/pkg/anthropic"
)

const suggestSystemPrompt = `You place one extracted job role into the firm's programme structure. You are given the firm's existing programmes and the other job titles seen on the same listing (useful for inferring naming patterns). Respond with one JSON object: {"matched": <bool>, "existing_program_id": <id or null>, "name": "<programme name>", "program_type": "internship"|"graduate"|"insight"|"other", "confidence": <0.0-1.0>, "rationale": "<one sentence>"}. Set matched true with the id only when the role clearly belongs to a listed programme; otherwise propose a new programme name without a year in it.`

const suggestUserPrompt = `Role:
%s

Existing programmes:
%s

Programme names the operator expects this firm to run:
%s

Other titles on this listing:
%s`

// suggestProgram decides which programme a new role belongs to. A claimed
// match that carries no programme id cannot be acted on, so it is coerced
// into a new-programme proposal rather than trusted.
func (r *run) suggestProgram(ctx context.Context, extracted *model.ExtractedRole, programs []model.Program, titleURLs []model.TitleURL) (*model.ProgramSuggestion, error) {
	roleJSON, err := json.Marshal(extracted)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: marshal extracted role")
	}

	var progs strings.Builder
	for _, p := range programs {
		fmt.Fprintf(&progs, "- id %d: %s (%s)\n", p.ID, p.Name, p.ProgramType)
	}
	if progs.Len() == 0 {
		progs.WriteString("(none)\n")
	}

	var expected strings.Builder
	if r.req.Hints != nil {
		for _, name := range r.req.Hints.ExpectedPrograms {
			fmt.Fprintf(&expected, "- %s\n", name)
		}
	}
	if expected.Len() == 0 {
		expected.WriteString("(none)\n")
	}

	var siblings strings.Builder
	for _, tu := range titleURLs {
		fmt.Fprintf(&siblings, "- %s\n", tu.Title)
	}

	resp, err := r.callLLM(ctx, "suggest", anthropic.MessageRequest{
		Model:     r.aiCfg.SuggestModel,
		MaxTokens: 512,
		System:    anthropic.BuildCachedSystemBlocks(suggestSystemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(suggestUserPrompt, roleJSON, progs.String(), expected.String(), siblings.String())},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: suggest program")
	}

	var suggestion model.ProgramSuggestion
	if err := json.Unmarshal([]byte(cleanJSON(extractText(resp))), &suggestion); err != nil {
		return nil, eris.Wrap(err, "pipeline: parse program suggestion")
	}

	normalizeSuggestion(&suggestion, extracted, programs)
	return &suggestion, nil
}

// normalizeSuggestion enforces the suggestion's internal consistency. A match
// must name a programme the firm actually has; anything else becomes a
// new-programme proposal.
func normalizeSuggestion(s *model.ProgramSuggestion, extracted *model.ExtractedRole, programs []model.Program) {
	if s.Matched {
		if s.ExistingProgramID == nil || !programExists(programs, *s.ExistingProgramID) {
			zap.L().Warn("pipeline: matched suggestion without a valid programme id, treating as new",
				zap.String("name", s.Name),
			)
			s.Matched = false
			s.ExistingProgramID = nil
		}
	} else {
		s.ExistingProgramID = nil
	}

	if s.Name == "" {
		if extracted.ProgramName != nil && *extracted.ProgramName != "" {
			s.Name = *extracted.ProgramName
		} else {
			s.Name = extracted.Title
		}
	}
	if !validProgramType(s.ProgramType) {
		s.ProgramType = model.ProgramTypeOther
	}
}

func programExists(programs []model.Program, id int64) bool {
	for _, p := range programs {
		if p.ID == id {
			return true
		}
	}
	return false
}

func validProgramType(t model.ProgramType) bool {
	switch t {
	case model.ProgramTypeInternship, model.ProgramTypeGraduate, model.ProgramTypeInsight, model.ProgramTypeOther:
		return true
	}
	return false
}
