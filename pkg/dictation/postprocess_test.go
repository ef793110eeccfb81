package dictation

import "testing"

func TestFilterFillerWords(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		fillers []string
		want    string
	}{
		{"no fillers configured", "um hello", nil, "um hello"},
		{"single filler", "um hello world", []string{"um"}, "hello world"},
		{"case insensitive", "Um hello, UM world", []string{"um"}, "hello, world"},
		{"whole word only", "summary unmatched", []string{"um"}, "summary unmatched"},
		{"collapses punctuation spacing", "hello , um world", []string{"um"}, "hello, world"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterFillerWords(tt.text, tt.fillers)
			if got != tt.want {
				t.Errorf("FilterFillerWords(%q, %v) = %q, want %q", tt.text, tt.fillers, got, tt.want)
			}
		})
	}
}
