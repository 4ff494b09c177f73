package config

import (
	"strings"
	"testing"
)

const minimalScenario = `
base_case: base/project.yaml
location: work
parameters:
  - name: A
    kind: continuous
    min: [0]
    max: [10]
    base: [5]
observables:
  - kind: GridPropertyXYZ
    property: Temperature
    x: 1
    y: 1
    z: 1
`

func TestParseScenarioYAMLString(t *testing.T) {
	s, err := ParseScenarioYAMLString(minimalScenario)
	if err != nil {
		t.Fatalf("ParseScenarioYAMLString failed: %v", err)
	}
	if s.Parameters[0].Name != "A" {
		t.Fatalf("expected parameter A, got %q", s.Parameters[0].Name)
	}
	if s.RunManager.Type != "" {
		t.Errorf("expected no run manager, got %q", s.RunManager.Type)
	}
}

func TestParseScenarioYAMLErrors(t *testing.T) {
	tests := []struct {
		name    string
		extra   string
		replace [2]string
		want    string
	}{
		{name: "bad yaml", replace: [2]string{"parameters:", "parameters: ["}, want: "failed to parse"},
		{name: "min above max", replace: [2]string{"min: [0]", "min: [20]"}, want: "greater than max"},
		{name: "base outside", replace: [2]string{"base: [5]", "base: [11]"}, want: "outside"},
		{name: "unknown kind", replace: [2]string{"kind: continuous", "kind: fuzzy"}, want: "invalid kind"},
		{name: "unknown observable", replace: [2]string{"kind: GridPropertyXYZ", "kind: Seismic"}, want: "unknown observable kind"},
		{name: "reference count", extra: "    reference: [1, 2]\n    std_dev: [1]\n", want: "expected 1 reference values"},
		{name: "negative deviation", extra: "    reference: [1]\n    std_dev: [-1]\n", want: "must be positive"},
		{name: "unknown family", extra: "doe:\n  - family: Taguchi\n", want: "unknown design family"},
		{name: "lhs without samples", extra: "doe:\n  - family: LatinHypercube\n", want: "positive sample count"},
		{name: "proxy unknown doe", extra: "proxies:\n  - name: P\n    order: 1\n    doe_list: [DoE_Tornado]\n", want: "unknown experiment"},
		{name: "proxy order", extra: "doe:\n  - family: Tornado\nproxies:\n  - name: P\n    order: 3\n    doe_list: [DoE_Tornado]\n", want: "order must be"},
		{name: "mc unknown proxy", extra: "monte_carlo:\n  proxy: Nope\n  samples: 10\n", want: "unknown proxy"},
		{name: "exec without command", extra: "run_manager:\n  type: exec\n", want: "needs a command"},
		{name: "grpc without addr", extra: "run_manager:\n  type: grpc\n", want: "needs an addr"},
		{name: "bad backoff", extra: "run_manager:\n  type: grpc\n  addr: x:1\n  retries:\n    max_retries: 1\n    backoff: random\n    base_ms: 1\n", want: "invalid backoff"},
		{name: "sqlite without dsn", extra: "ledger:\n  driver: sqlite\n", want: "needs a dsn"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := minimalScenario
			if tt.replace[0] != "" {
				text = strings.Replace(text, tt.replace[0], tt.replace[1], 1)
			}
			text += tt.extra
			_, err := ParseScenarioYAMLString(text)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestSpaceFillingLabelsAccepted(t *testing.T) {
	text := minimalScenario + "doe:\n  - family: SpaceFilling\n    samples: 4\nproxies:\n  - name: P\n    order: 1\n    doe_list: [DoE_SpaceFilling, DoE_SpaceFilling_2]\n"
	if _, err := ParseScenarioYAMLString(text); err != nil {
		t.Fatalf("additive labels rejected: %v", err)
	}
}
