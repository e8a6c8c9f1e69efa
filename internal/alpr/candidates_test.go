package alpr

import (
	"testing"

	"parking-anpr-service/internal/domain/anpr"
)

func TestParseCandidates(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []anpr.Candidate
	}{
		{
			name: "empty input",
			in:   "",
			want: nil,
		},
		{
			name: "openalpr output",
			in: "plate0: 10 results\n" +
				"    - ABC123\t confidence: 89.9\n" +
				"    - ABC12\t confidence: 80.1\n",
			want: []anpr.Candidate{
				{Plate: "ABC123", Confidence: 89.9},
				{Plate: "ABC12", Confidence: 80.1},
			},
		},
		{
			name: "noise lines ignored",
			in:   "- ABC123 confidence: 89.9\n- XYZ999 confidence: 95.0\nnoise line\n",
			want: []anpr.Candidate{
				{Plate: "ABC123", Confidence: 89.9},
				{Plate: "XYZ999", Confidence: 95.0},
			},
		},
		{
			name: "duplicates kept",
			in:   "- AAA111 confidence: 50\n- AAA111 confidence: 70\n",
			want: []anpr.Candidate{
				{Plate: "AAA111", Confidence: 50},
				{Plate: "AAA111", Confidence: 70},
			},
		},
		{
			name: "lowercase plate rejected",
			in:   "- abc123 confidence: 89.9\n",
			want: nil,
		},
		{
			name: "dash must be followed by whitespace",
			in:   "-ABC123 confidence: 89.9\n",
			want: nil,
		},
		{
			name: "missing confidence number",
			in:   "- ABC123 confidence:\n",
			want: nil,
		},
		{
			name: "later dash starts the reading",
			in:   "x-y - QRS77 confidence: 12.5 trailing\r",
			want: []anpr.Candidate{{Plate: "QRS77", Confidence: 12.5}},
		},
		{
			name: "malformed number drops line",
			in:   "- ABC123 confidence: 1.2.3\n- DEF456 confidence: 3\n",
			want: []anpr.Candidate{{Plate: "DEF456", Confidence: 3}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseCandidates(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d candidates %v, want %d %v", len(got), got, len(tt.want), tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("candidate %d: got %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSelectBest(t *testing.T) {
	res := SelectBest(ParseCandidates("- ABC123 confidence: 89.9\n- XYZ999 confidence: 95.0\nnoise line\n"))
	if !res.HasPlate() || res.Plate() != "XYZ999" || res.Confidence != 95.0 {
		t.Fatalf("unexpected best: %+v", res)
	}
	if res.Frame != nil {
		t.Fatalf("single image result must not carry a frame")
	}
}

func TestSelectBestEmpty(t *testing.T) {
	res := SelectBest(nil)
	if res.HasPlate() || res.Confidence != 0 {
		t.Fatalf("expected no plate, got %+v", res)
	}
}

func TestSelectBestTieKeepsFirst(t *testing.T) {
	cands := []anpr.Candidate{
		{Plate: "LOW1", Confidence: 10},
		{Plate: "FIRST", Confidence: 90},
		{Plate: "MID", Confidence: 40},
		{Plate: "SECOND", Confidence: 90},
	}
	res := SelectBest(cands)
	if res.Plate() != "FIRST" || res.Confidence != 90 {
		t.Fatalf("tie must resolve to earliest maximum, got %+v", res)
	}
}

func TestSelectBestMatchesMax(t *testing.T) {
	cands := []anpr.Candidate{
		{Plate: "A", Confidence: 3.5},
		{Plate: "B", Confidence: 0},
		{Plate: "C", Confidence: 99.99},
		{Plate: "D", Confidence: 42},
	}
	max := 0.0
	for _, c := range cands {
		if c.Confidence > max {
			max = c.Confidence
		}
	}
	if got := SelectBest(cands).Confidence; got != max {
		t.Fatalf("got %v, want %v", got, max)
	}
}
