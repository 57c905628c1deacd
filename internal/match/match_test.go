package match

import (
	"math"
	"testing"
)

func TestRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "abcd", "abcd", 1.0},
		{"disjoint", "abc", "xyz", 0.0},
		{"both empty", "", "", 1.0},
		{"one empty", "abc", "", 0.0},
		{"classic difflib example", "abcd", "bcde", 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Ratio(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Ratio(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestRatioSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"deep residual learning", "deep residual learning for image recognition"},
		{"attention is all you need", "attention was all we needed"},
		{"", "x"},
	}
	for _, p := range pairs {
		ab, ba := Ratio(p[0], p[1]), Ratio(p[1], p[0])
		if math.Abs(ab-ba) > 1e-9 {
			t.Errorf("Ratio(%q, %q) = %v but reversed = %v", p[0], p[1], ab, ba)
		}
	}
}

func TestRatioRange(t *testing.T) {
	pairs := [][2]string{
		{"a survey of graph neural networks", "graph neural networks a survey"},
		{"short", "a much longer string that shares little"},
	}
	for _, p := range pairs {
		got := Ratio(p[0], p[1])
		if got < 0 || got > 1 {
			t.Errorf("Ratio(%q, %q) = %v out of [0,1]", p[0], p[1], got)
		}
	}
}

func TestTitles(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{
			"exact after normalization",
			"Deep Residual Learning: For Image Recognition",
			"deep residual learning for image recognition!",
			true,
		},
		{
			"minor typo within threshold",
			"Attention is all you need",
			"Attention is all you ned",
			true,
		},
		{
			"different papers",
			"Deep Residual Learning for Image Recognition",
			"Generative Adversarial Networks",
			false,
		},
		{"empty left", "", "anything", false},
		{"empty right", "anything", "", false},
		{"both empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Titles(tt.a, tt.b); got != tt.want {
				t.Errorf("Titles(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestTitlesSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"Attention is all you need", "Attention is all you ned"},
		{"A Study of Widgets", "Completely unrelated title"},
	}
	for _, p := range pairs {
		if Titles(p[0], p[1]) != Titles(p[1], p[0]) {
			t.Errorf("Titles not symmetric for %q vs %q", p[0], p[1])
		}
	}
}

func TestNameSimilarity(t *testing.T) {
	if got := NameSimilarity("Jane Doe", "jane doe"); got != 1.0 {
		t.Errorf("case-insensitive identical names = %v, want 1.0", got)
	}
	if got := NameSimilarity("C. Tantithamthavorn", "Chakkrit Tantithamthavorn"); got < NameThreshold {
		t.Errorf("abbreviated vs full name = %v, want >= %v", got, NameThreshold)
	}
	if got := NameSimilarity("Jane Doe", "Wei Zhang"); got >= NameThreshold {
		t.Errorf("unrelated names = %v, want < %v", got, NameThreshold)
	}
}

func TestSearchScore(t *testing.T) {
	t.Run("identical gets full score", func(t *testing.T) {
		if got := SearchScore("graph neural networks", "Graph Neural Networks"); got != 1.0 {
			t.Errorf("got %v, want 1.0", got)
		}
	})

	t.Run("substring bonus applies", func(t *testing.T) {
		base := SearchScore("graph neural networks extended", "totally graph different networks words")
		sub := SearchScore("graph neural networks", "a survey of graph neural networks")
		if sub <= base {
			t.Errorf("contained title scored %v, not above non-substring %v", sub, base)
		}
	})

	t.Run("weak match below threshold", func(t *testing.T) {
		got := SearchScore("deep residual learning for image recognition", "bayesian optimization of hyperparameters")
		if got >= WeakScoreThreshold {
			t.Errorf("got %v, want < %v", got, WeakScoreThreshold)
		}
	})

	t.Run("empty query", func(t *testing.T) {
		if got := SearchScore("", "anything"); got != 0 {
			t.Errorf("got %v, want 0", got)
		}
	})

	t.Run("never exceeds one", func(t *testing.T) {
		if got := SearchScore("a b", "a b"); got > 1 {
			t.Errorf("got %v, want <= 1", got)
		}
	})
}
