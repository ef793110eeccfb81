package llmstream

import "testing"

func TestFamilyForModel_GPTOSSDetection(t *testing.T) {
	fam := FamilyForModel("local/gpt-oss-20b-q4")
	if fam.Family != "gpt-oss" {
		t.Errorf("expected gpt-oss family selected, got %q", fam.Family)
	}
}

func TestFamilyForModel_DefaultsToThinkTag(t *testing.T) {
	fam := FamilyForModel("llama-3.1-8b-instruct")
	if fam.Family != "think-tag" {
		t.Errorf("expected default think-tag family, got %q", fam.Family)
	}
}

func TestAllMarkers_ClosedSet(t *testing.T) {
	all := AllMarkers()
	if len(all) != 3 {
		t.Errorf("expected 3 configured model families, got %d", len(all))
	}
}

func TestLongestMarker_CoversEveryFamily(t *testing.T) {
	for _, fam := range AllMarkers() {
		for _, s := range []string{fam.Open, fam.Close, fam.Preamble} {
			if len(s) > longestMarker {
				t.Errorf("marker %q exceeds computed longestMarker bound %d", s, longestMarker)
			}
		}
	}
}
