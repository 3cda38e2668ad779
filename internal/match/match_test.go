package match

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Battery Life ", "battery life"},
		{"Price/Value!!", "price value"},
		{"Work-life   balance", "work life balance"},
		{"", ""},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			if got := Normalize(tc.in); got != tc.want {
				t.Fatalf("expected %q got %q", tc.want, got)
			}
		})
	}
}

func TestKeySet(t *testing.T) {
	set := NewKeySet("Battery Life", "Price")
	if !set.Has("battery-life") {
		t.Fatalf("expected punctuation-insensitive match")
	}
	if set.Add("PRICE") {
		t.Fatalf("expected duplicate to be rejected")
	}
	if !set.Add("Weight") {
		t.Fatalf("expected new name to be added")
	}
	if set.Add("   ") {
		t.Fatalf("blank names are never added")
	}
}

func TestTokensDropStopWords(t *testing.T) {
	got := Tokens("The Cost of Ownership")
	if len(got) != 2 || got[0] != "cost" || got[1] != "ownership" {
		t.Fatalf("unexpected tokens %v", got)
	}
}

func TestSimilarity(t *testing.T) {
	if s := Similarity("kitten", "sitting"); s < 0.57 || s > 0.58 {
		t.Fatalf("unexpected similarity %f", s)
	}
	if s := Similarity("Price", "price"); s != 1 {
		t.Fatalf("expected 1 got %f", s)
	}
	if s := Similarity("", "abc"); s != 0 {
		t.Fatalf("expected 0 got %f", s)
	}
}

func TestBest(t *testing.T) {
	candidates := []string{"Performance", "Battery life", "Price"}
	idx, _ := Best("battery", candidates, 0.5)
	if idx != 1 {
		t.Fatalf("expected battery life got %d", idx)
	}
	idx, _ = Best("perfomance", candidates, 0.5)
	if idx != 0 {
		t.Fatalf("expected typo to match performance got %d", idx)
	}
	idx, _ = Best("warranty", candidates, 0.7)
	if idx != -1 {
		t.Fatalf("expected no match got %d", idx)
	}
}
