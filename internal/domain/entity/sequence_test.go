package entity

import "testing"

func TestApprovalSequence_Validate(t *testing.T) {
	tests := []struct {
		name    string
		seq     ApprovalSequence
		wantErr bool
	}{
		{
			name: "valid mixed steps",
			seq: ApprovalSequence{
				Name: "standard",
				Steps: []SequenceStep{
					{Step: 1, Kind: StepKindRole, Value: "manager"},
					{Step: 2, Kind: StepKindUser, Value: "admin2"},
				},
			},
		},
		{
			name:    "missing name",
			seq:     ApprovalSequence{Steps: []SequenceStep{{Step: 1, Kind: StepKindRole, Value: "manager"}}},
			wantErr: true,
		},
		{
			name:    "no steps",
			seq:     ApprovalSequence{Name: "empty"},
			wantErr: true,
		},
		{
			name: "zero-based steps",
			seq: ApprovalSequence{
				Name:  "offbyone",
				Steps: []SequenceStep{{Step: 0, Kind: StepKindRole, Value: "manager"}},
			},
			wantErr: true,
		},
		{
			name: "gap in steps",
			seq: ApprovalSequence{
				Name: "gapped",
				Steps: []SequenceStep{
					{Step: 1, Kind: StepKindRole, Value: "manager"},
					{Step: 3, Kind: StepKindUser, Value: "admin1"},
				},
			},
			wantErr: true,
		},
		{
			name: "unknown kind",
			seq: ApprovalSequence{
				Name:  "badkind",
				Steps: []SequenceStep{{Step: 1, Kind: "group", Value: "finance"}},
			},
			wantErr: true,
		},
		{
			name: "repeated step",
			seq: ApprovalSequence{
				Name: "twice",
				Steps: []SequenceStep{
					{Step: 1, Kind: StepKindUser, Value: "admin2"},
					{Step: 2, Kind: StepKindUser, Value: "admin2"},
				},
			},
			wantErr: true,
		},
		{
			name: "same value under different kinds",
			seq: ApprovalSequence{
				Name: "kindsplit",
				Steps: []SequenceStep{
					{Step: 1, Kind: StepKindRole, Value: "manager"},
					{Step: 2, Kind: StepKindUser, Value: "manager"},
				},
			},
		},
		{
			name: "empty value",
			seq: ApprovalSequence{
				Name:  "novalue",
				Steps: []SequenceStep{{Step: 1, Kind: StepKindUser, Value: ""}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.seq.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
