package ingest

import "testing"

func TestStripMarkup(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"  spaced \n out ", "spaced out"},
		{"<p>Bitcoin <b>rallies</b> today</p>", "Bitcoin rallies today"},
		{"A &amp; B", "A & B"},
		{"<script>evil()</script>visible", "evil()visible"},
		{"", ""},
	}
	for _, c := range cases {
		if got := StripMarkup(c.in); got != c.want {
			t.Errorf("StripMarkup(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestEmbeddingTextJoinsFields(t *testing.T) {
	a := RawArticle{
		Title:   "Bitcoin rallies",
		Summary: "<p>BTC up 5%</p>",
		Content: "",
	}
	got := embeddingText(a)
	want := "Bitcoin rallies. BTC up 5%"
	if got != want {
		t.Fatalf("embeddingText = %q, want %q", got, want)
	}
}

func TestEmbeddingTextEmptyArticle(t *testing.T) {
	if got := embeddingText(RawArticle{}); got != "" {
		t.Fatalf("expected empty text, got %q", got)
	}
}
