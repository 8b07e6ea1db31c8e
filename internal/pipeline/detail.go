package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/careers-cli/internal/identity"
	"github.com/sells-group/careers-cli/internal/model"
	"github.com/sells-group/careers-cli/pkg/anthropic"
)

const extractSystemPrompt = `You extract structured data from a single job posting page. Respond with one JSON object: {"title": "<job title>", "location": <string or null>, "employment_type": <string or null>, "program_name": <string or null>, "deadline": <string or null>, "open_date": <string or null>, "salary": <string or null>, "summary": <string or null>, "is_open": <true, false, or null>}. Use null for anything the page does not state. Never guess: is_open is true only when the page says applications are open, false only when it says they are closed.`

const extractUserPrompt = `URL: %s
Expected title: %s

Page content:
%s`

// maxDetailContentChars bounds how much of a detail page is sent to the
// extractor. Postings rarely carry useful content past this point.
const maxDetailContentChars = 40000

// runDetailPhase opens the candidate's posting in its own session, extracts
// the structured role, and persists the resulting drafts. Each candidate is
// independent: a failure here is counted by the caller, never fatal.
func (r *run) runDetailPhase(ctx context.Context, cand model.CandidateLink, programs []model.Program, titleURLs []model.TitleURL) error {
	sess, err := r.browser.NewSession(ctx)
	if err != nil {
		return eris.Wrap(err, "pipeline: open detail session")
	}
	defer func() {
		if cerr := sess.Close(context.WithoutCancel(ctx)); cerr != nil {
			zap.L().Warn("pipeline: close detail session", zap.Error(cerr))
		}
	}()

	if err := sess.Navigate(ctx, cand.URL); err != nil {
		return eris.Wrapf(err, "pipeline: navigate detail %s", cand.URL)
	}
	r.pageLoads.Add(1)
	r.settle(ctx, sess)

	html, err := sess.Content(ctx)
	if err != nil {
		return eris.Wrapf(err, "pipeline: read detail %s", cand.URL)
	}

	extracted, err := r.extractRole(ctx, cand, html)
	if err != nil {
		return err
	}

	return r.persistDrafts(ctx, cand, extracted, programs, titleURLs)
}

// extractRole asks the model for the posting's structured record. The visible
// text is lifted out of the HTML first so markup does not eat the budget.
func (r *run) extractRole(ctx context.Context, cand model.CandidateLink, html string) (*model.ExtractedRole, error) {
	content := visibleText(html)
	if len(content) > maxDetailContentChars {
		content = content[:maxDetailContentChars]
	}

	resp, err := r.callLLM(ctx, "extract", anthropic.MessageRequest{
		Model:     r.aiCfg.ExtractModel,
		MaxTokens: 1024,
		System:    anthropic.BuildCachedSystemBlocks(extractSystemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(extractUserPrompt, cand.URL, cand.Title, content)},
		},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: extract %s", cand.URL)
	}

	var extracted model.ExtractedRole
	if err := json.Unmarshal([]byte(cleanJSON(extractText(resp))), &extracted); err != nil {
		return nil, eris.Wrapf(err, "pipeline: parse extraction for %s", cand.URL)
	}
	if extracted.Title == "" {
		extracted.Title = cand.Title
	}
	return &extracted, nil
}

// persistDrafts writes the role draft, and for genuinely new roles the
// programme draft it hangs off. The store's find-or-create semantics make
// this safe to repeat: a rerun before review lands on the same pending rows.
func (r *run) persistDrafts(ctx context.Context, cand model.CandidateLink, extracted *model.ExtractedRole, programs []model.Program, titleURLs []model.TitleURL) error {
	data, err := json.Marshal(extracted)
	if err != nil {
		return eris.Wrap(err, "pipeline: marshal extraction")
	}

	draft := &model.RoleDraft{
		FirmID:         r.req.FirmID,
		RunID:          r.rec.ID,
		ExistingRoleID: cand.ExistingRoleID,
		Action:         cand.Action,
		Title:          extracted.Title,
		URL:            cand.URL,
		NormalizedURL:  identity.NormalizeURL(cand.URL),
		CanonicalName:  identity.CanonicalName(extracted.Title),
		URLChanged:     cand.URLChanged,
		Data:           data,
	}

	if cand.Action == model.ActionNewRole {
		suggestion, err := r.suggestProgram(ctx, extracted, programs, titleURLs)
		if err != nil {
			return err
		}
		programDraft, _, err := r.store.SaveProgramDraft(ctx, &model.ProgramDraft{
			FirmID:            r.req.FirmID,
			RunID:             r.rec.ID,
			Name:              suggestion.Name,
			NormalizedName:    identity.CanonicalName(suggestion.Name),
			ProgramType:       suggestion.ProgramType,
			ExistingProgramID: suggestion.ExistingProgramID,
			Confidence:        suggestion.Confidence,
			Rationale:         suggestion.Rationale,
		})
		if err != nil {
			return eris.Wrap(err, "pipeline: save program draft")
		}
		draft.ProgramDraftID = &programDraft.ID
	}

	saved, created, err := r.store.SaveRoleDraft(ctx, draft)
	if err != nil {
		return eris.Wrap(err, "pipeline: save role draft")
	}
	if !created {
		zap.L().Info("pipeline: role draft already pending",
			zap.Int64("draft_id", saved.ID),
			zap.String("url", cand.URL),
		)
	}
	return nil
}
