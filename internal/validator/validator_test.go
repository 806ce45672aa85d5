package validator

import (
	"testing"

	"github.com/pauljones0/gapfinder/internal/models"
)

func TestValidator_ValidateStruct(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		value   interface{}
		wantErr bool
	}{
		{
			name:    "Valid Tool",
			value:   models.ToolRecord{ID: "canva", Name: "Canva"},
			wantErr: false,
		},
		{
			name:    "Missing ID",
			value:   models.ToolRecord{Name: "Canva"},
			wantErr: true,
		},
		{
			name:    "Missing Name",
			value:   models.ToolRecord{ID: "canva"},
			wantErr: true,
		},
		{
			name:    "Complaint without issue",
			value:   models.UserComplaint{Frequency: 10, Severity: models.SeverityHigh},
			wantErr: true,
		},
		{
			name:    "Gap without text",
			value:   models.IndustryGap{Opportunity: "something"},
			wantErr: true,
		},
		{
			name:    "Valid action",
			value:   models.QueuedAction{Type: models.ActionFeedback, Priority: models.PriorityHigh},
			wantErr: false,
		},
		{
			name:    "Unknown action type",
			value:   models.QueuedAction{Type: "telemetry"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := v.ValidateStruct(tt.value); (err != nil) != tt.wantErr {
				t.Errorf("ValidateStruct() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidator_CleanTool(t *testing.T) {
	v := New()

	rec := models.ToolRecord{
		ID:   " canva ",
		Name: "Canva",
		UserComplaints: []models.UserComplaint{
			{Issue: "No offline mode", Frequency: 140, Severity: "HIGH"},
			{Issue: "", Frequency: 10},
		},
		IndustryGaps: []models.IndustryGap{
			{Gap: "Offline Support", Potential: "Very High"},
			{Opportunity: "orphan opportunity"},
		},
		SimilarTools: []models.SimilarTool{{ID: "figma", Name: "Figma"}, {}},
	}

	dropped, err := v.CleanTool(&rec)
	if err != nil {
		t.Fatalf("CleanTool() returned unexpected error: %v", err)
	}
	if dropped != 3 {
		t.Errorf("Expected 3 dropped entries, got %d", dropped)
	}
	if rec.ID != "canva" {
		t.Errorf("Expected trimmed id, got %q", rec.ID)
	}
	if len(rec.UserComplaints) != 1 || rec.UserComplaints[0].Frequency != 100 {
		t.Errorf("Expected one complaint clamped to 100, got %+v", rec.UserComplaints)
	}
	if rec.UserComplaints[0].Severity != models.SeverityHigh {
		t.Errorf("Expected severity lowercased, got %q", rec.UserComplaints[0].Severity)
	}
	if len(rec.IndustryGaps) != 1 || rec.IndustryGaps[0].Potential != models.PotentialVeryHigh {
		t.Errorf("Expected one normalized gap, got %+v", rec.IndustryGaps)
	}
	if len(rec.SimilarTools) != 1 {
		t.Errorf("Expected empty similar-tool reference dropped, got %+v", rec.SimilarTools)
	}
	if rec.Keywords == nil || rec.Aliases == nil {
		t.Error("Expected nil lists defaulted to empty")
	}
}

func TestValidator_CleanToolRejectsMissingName(t *testing.T) {
	v := New()
	rec := models.ToolRecord{ID: "x"}
	if _, err := v.CleanTool(&rec); err == nil {
		t.Error("CleanTool() should reject a record without a name")
	}
}
