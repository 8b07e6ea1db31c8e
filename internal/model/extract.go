package model

// ExtractedRole is the structured record produced by the detail-phase
// extraction capability. Every attribute the page did not establish is nil;
// the extractor never invents values.
type ExtractedRole struct {
	Title          string  `json:"title"`
	Location       *string `json:"location"`
	EmploymentType *string `json:"employment_type"`
	ProgramName    *string `json:"program_name"`
	Deadline       *string `json:"deadline"`
	OpenDate       *string `json:"open_date"`
	Salary         *string `json:"salary"`
	Summary        *string `json:"summary"`
	IsOpen         *bool   `json:"is_open"`
}

// ProgramSuggestion is the suggestion capability's decision for an extracted
// role: either a match to an existing programme (ExistingProgramID set) or a
// new-programme proposal. The detail runner coerces any "matched" claim that
// lacks an id into a new-programme suggestion before persisting.
type ProgramSuggestion struct {
	Matched           bool        `json:"matched"`
	ExistingProgramID *int64      `json:"existing_program_id"`
	Name              string      `json:"name"`
	ProgramType       ProgramType `json:"program_type"`
	Confidence        float64     `json:"confidence"`
	Rationale         string      `json:"rationale"`
}
