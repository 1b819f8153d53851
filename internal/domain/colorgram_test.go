package domain

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
)

func TestDistributionNaNAsNull(t *testing.T) {
	d := Distribution{0.25, math.NaN(), 1}
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got := string(data); got != "[0.25,null,1]" {
		t.Fatalf("got %s", got)
	}

	var back Distribution
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !math.IsNaN(back[1]) {
		t.Fatalf("null did not restore as NaN: %v", back)
	}
}

func TestColorgramWireShape(t *testing.T) {
	cg := Colorgram{
		ExperimentName: "concreteness",
		S3Key:          "abc123",
		Downloads:      []string{"img-1", "img-2"},
		Dims:           map[string]string{"query": "cat", "region": "us"},
		RGBDist:        Distribution{0.5},
	}
	data, err := json.Marshal(cg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	// dimension tags are flattened into the top level
	if m["query"] != "cat" || m["region"] != "us" {
		t.Fatalf("dims not flattened: %v", m)
	}
	if m["experiment_name"] != "concreteness" {
		t.Fatalf("experiment_name missing: %v", m)
	}

	var back Colorgram
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal colorgram: %v", err)
	}
	if back.Dims["query"] != "cat" || len(back.Downloads) != 2 {
		t.Fatalf("round trip lost fields: %+v", back)
	}
}

func TestColorgramPath(t *testing.T) {
	cg := Colorgram{ExperimentName: "concreteness", S3Key: "abc123"}
	if got := cg.Path(); got != "concreteness/abc123" {
		t.Fatalf("got %q", got)
	}
	if strings.Contains(cg.Path(), "\\") {
		t.Fatalf("object-store paths must use forward slashes")
	}
}
