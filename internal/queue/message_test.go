package queue

import "testing"

func TestTaskMessageValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		msg     TaskMessage
		wantErr bool
	}{
		{
			name: "valid",
			msg:  TaskMessage{TaskID: "t1", BatchID: "b1", Filename: "cat.png"},
		},
		{
			name:    "missing task id",
			msg:     TaskMessage{BatchID: "b1", Filename: "cat.png"},
			wantErr: true,
		},
		{
			name:    "missing batch id",
			msg:     TaskMessage{TaskID: "t1", Filename: "cat.png"},
			wantErr: true,
		},
		{
			name:    "missing filename",
			msg:     TaskMessage{TaskID: "t1", BatchID: "b1", Filename: " "},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.msg.Validate()
			if tt.wantErr && err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("Validate() unexpected error = %v", err)
			}
		})
	}
}
