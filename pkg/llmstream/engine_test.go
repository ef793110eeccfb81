package llmstream

import "testing"

func TestEngine_ThinkingAndResponseChannelsSeparate(t *testing.T) {
	e := NewEngine(FamilyForModel("local-llama"), "")

	e.Feed("<think>working it out</think>")
	e.Feed("final answer")

	if e.ThinkingText() != "working it out" {
		t.Errorf("expected thinking text, got %q", e.ThinkingText())
	}
	if e.FinalArtifact() != "final answer" {
		t.Errorf("expected final artifact, got %q", e.FinalArtifact())
	}
}

func TestEngine_FinalArtifactAppliesDedup(t *testing.T) {
	e := NewEngine(FamilyForModel("local-llama"), "")
	e.Feed("the the answer")
	if got := e.FinalArtifact(); got != "the answer" {
		t.Errorf("expected dedup applied to final artifact, got %q", got)
	}
}

func TestEngine_RepetitionStopsStream(t *testing.T) {
	e := NewEngine(FamilyForModel("local-llama"), "loop phrase")

	var stopped bool
	for i := 0; i < 5 && !stopped; i++ {
		res := e.Feed("loop phrase ")
		if res.Stop {
			stopped = true
		}
	}
	if !stopped {
		t.Fatalf("expected the engine to signal Stop after repeated occurrences")
	}
}

func TestEngine_GPTOSSFamilyOverrides(t *testing.T) {
	e := NewEngine(FamilyForModel("local-gpt-oss-20b"), "")
	fam := e.Family()
	if fam.MaxTokens != 2048 {
		t.Errorf("expected gpt-oss max_tokens override of 2048, got %d", fam.MaxTokens)
	}
	if fam.Temperature != 0.3 || fam.TopP != 0.95 {
		t.Errorf("expected gpt-oss sampler overrides, got temp=%v top_p=%v", fam.Temperature, fam.TopP)
	}
	if fam.AntiRepetitionPrompt == "" {
		t.Errorf("expected an anti-repetition system prompt addition")
	}
}
