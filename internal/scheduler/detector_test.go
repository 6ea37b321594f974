package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/hamed0406/uptimesli/internal/domain"
	"github.com/hamed0406/uptimesli/internal/repo/memory"
)

func TestDetector(t *testing.T) {
	base := time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name    string
		history []bool
		want    Change
	}{
		{"no records", nil, Change{}},
		{"first record", []bool{true}, Change{}},
		{"steady up", []bool{true, true}, Change{Changed: false, Up: true}},
		{"steady down", []bool{false, false, false}, Change{Changed: false, Up: false}},
		{"went down", []bool{true, false}, Change{Changed: true, Up: false}},
		{"recovered", []bool{false, false, true}, Change{Changed: true, Up: true}},
		{"only last pair counts", []bool{true, false, false}, Change{Changed: false, Up: false}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			st := memory.New()
			for i, up := range c.history {
				r := &domain.CheckResult{TargetID: "T1", Up: up, StatusCode: 200, CheckedAt: base.Add(time.Duration(i) * time.Minute)}
				if err := st.Append(context.Background(), r); err != nil {
					t.Fatal(err)
				}
			}
			got, err := (&Detector{History: st}).Detect(context.Background(), "T1")
			if err != nil {
				t.Fatalf("Detect: %v", err)
			}
			if got != c.want {
				t.Fatalf("got %+v want %+v", got, c.want)
			}
		})
	}
}
