package council

import (
	"fmt"
	"reflect"
	"testing"
)

func TestAssignLabels(t *testing.T) {
	for k := 1; k <= 10; k++ {
		responses := make([]StageResponse, k)
		for i := range responses {
			responses[i] = StageResponse{Model: fmt.Sprintf("prov/model-%d", i), Response: "r"}
		}

		labels, labelToModel := assignLabels(responses)

		if len(labels) != k || len(labelToModel) != k {
			t.Fatalf("k=%d: got %d labels, %d map entries", k, len(labels), len(labelToModel))
		}
		for i, label := range labels {
			want := fmt.Sprintf("Response %c", rune('A'+i))
			if label != want {
				t.Errorf("k=%d: labels[%d] = %q, want %q", k, i, label, want)
			}
			if labelToModel[label] != responses[i].Model {
				t.Errorf("k=%d: labelToModel[%q] = %q, want %q", k, label, labelToModel[label], responses[i].Model)
			}
		}
	}
}

func TestParseRanking(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "numbered list after marker",
			text: "Response A is verbose. Response B is sharp.\n\nFINAL RANKING:\n1. Response B\n2. Response A\n3. Response C",
			want: []string{"Response B", "Response A", "Response C"},
		},
		{
			name: "last marker wins",
			text: "As instructed I will end with FINAL RANKING:\nfirst some analysis\n\nFINAL RANKING:\n1. Response C\n2. Response A",
			want: []string{"Response C", "Response A"},
		},
		{
			name: "marker without numbering falls back to bare labels",
			text: "FINAL RANKING:\nBest was Response B, then Response A.",
			want: []string{"Response B", "Response A"},
		},
		{
			name: "no marker falls back to bare labels anywhere",
			text: "I prefer Response A over Response C here.",
			want: []string{"Response A", "Response C"},
		},
		{
			name: "whitespace tolerated between number and label",
			text: "FINAL RANKING:\n1.   Response D\n2.\tResponse A",
			want: []string{"Response D", "Response A"},
		},
		{
			name: "partial ranking preserved",
			text: "FINAL RANKING:\n1. Response B",
			want: []string{"Response B"},
		},
		{
			name: "duplicates preserved",
			text: "FINAL RANKING:\n1. Response A\n2. Response A",
			want: []string{"Response A", "Response A"},
		},
		{
			name: "empty text",
			text: "",
			want: []string{},
		},
		{
			name: "garbage",
			text: "no labels here at all",
			want: []string{},
		},
		{
			name: "lowercase marker is not a marker",
			text: "final ranking:\n1. Response B\nResponse A was fine too",
			want: []string{"Response B", "Response A"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseRanking(tt.text)
			if got == nil {
				t.Fatal("ParseRanking returned nil, want non-nil slice")
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseRanking() = %v, want %v", got, tt.want)
			}
		})
	}
}
