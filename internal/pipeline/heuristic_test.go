package pipeline

import "testing"

func heuristicOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	return New(newMemStore(t), nil, nil, Config{})
}

func TestSearchWorthy(t *testing.T) {
	o := heuristicOrchestrator(t)

	cases := []struct {
		text string
		want bool
	}{
		{"What is the capital of France?", true},
		{"who won the world cup", true},
		{"tell me the latest developments in fusion power", true},
		{"summarize events from 2024", true},
		{"my meeting with Alice went well", true},
		{"Thanks, that's helpful!", false},
		{"ok sounds good", false},
		{"please rephrase that more simply", false},
		{"", false},
		{"   ", false},
	}

	for _, tc := range cases {
		if got := o.searchWorthy(tc.text); got != tc.want {
			t.Errorf("searchWorthy(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestSearchWorthyCustomCues(t *testing.T) {
	o := New(newMemStore(t), nil, nil, Config{
		Interrogatives: []string{"explain"},
		RecencyCues:    []string{"breaking"},
	})

	if !o.searchWorthy("explain quantum tunneling") {
		t.Error("expected custom interrogative to trigger search")
	}
	if !o.searchWorthy("any breaking stories") {
		t.Error("expected custom recency cue to trigger search")
	}
	if o.searchWorthy("tell me more about the last answer") {
		t.Error("expected non-matching text to skip search")
	}
}
