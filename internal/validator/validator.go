// Package validator checks decoded dataset records and queued actions.
package validator

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/pauljones0/gapfinder/internal/models"
)

// Validator is a wrapper around the validator library.
type Validator struct {
	validate *validator.Validate
}

// New creates a new Validator instance.
func New() *Validator {
	return &Validator{
		validate: validator.New(),
	}
}

// ValidateStruct validates a struct based on its tags.
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// CleanTool normalizes rec in place and drops nested complaints and gaps that
// fail validation. It returns an error only when the record itself is unusable
// (missing id or name); dropped reports how many nested entries were removed.
func (v *Validator) CleanTool(rec *models.ToolRecord) (dropped int, err error) {
	rec.Normalize()
	if err := v.validate.Struct(rec); err != nil {
		return 0, fmt.Errorf("tool %q: %w", rec.ID, err)
	}

	complaints := rec.UserComplaints[:0]
	for _, c := range rec.UserComplaints {
		if v.validate.Struct(c) != nil {
			dropped++
			continue
		}
		complaints = append(complaints, c)
	}
	rec.UserComplaints = complaints

	gaps := rec.IndustryGaps[:0]
	for _, g := range rec.IndustryGaps {
		if v.validate.Struct(g) != nil {
			dropped++
			continue
		}
		gaps = append(gaps, g)
	}
	rec.IndustryGaps = gaps

	similar := rec.SimilarTools[:0]
	for _, s := range rec.SimilarTools {
		if s.ID == "" && s.Name == "" {
			dropped++
			continue
		}
		similar = append(similar, s)
	}
	rec.SimilarTools = similar
	return dropped, nil
}
