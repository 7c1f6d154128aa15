package decode

import (
	"testing"
)

type doc struct {
	Name  string   `json:"name" yaml:"name"`
	Rates []uint32 `json:"rates" yaml:"rates"`
}

// TestDocument tests decoding JSON and YAML documents.
func TestDocument(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    doc
		wantErr bool
	}{
		{
			name:  "json with tabs",
			input: "{\n\t\"name\": \"a\",\n\t\"rates\": [44100, 48000]\n}",
			want:  doc{Name: "a", Rates: []uint32{44100, 48000}},
		},
		{
			name:  "yaml",
			input: "name: b\nrates:\n  - 22050\n",
			want:  doc{Name: "b", Rates: []uint32{22050}},
		},
		{name: "empty", input: "  \n", wantErr: true},
		{name: "broken json", input: "{\"name\": ", wantErr: true},
		{name: "trailing json", input: "{\"name\": \"a\"} {}", wantErr: true},
		{name: "broken yaml", input: "name: [unterminated", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got doc
			err := Document([]byte(tt.input), &got)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Document() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.Name != tt.want.Name || len(got.Rates) != len(tt.want.Rates) {
				t.Errorf("Document() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
