package dashboard

import "testing"

func TestParseLinks(t *testing.T) {
	header := `<https://api.example/networks?startingAfter=a>; rel=next, ` +
		`<https://api.example/networks?endingBefore=b>; rel="prev", ` +
		`<https://api.example/networks>; rel=first, broken; rel=last`

	links := parseLinks(header)
	if got := links["next"]; got != "https://api.example/networks?startingAfter=a" {
		t.Errorf("next = %q", got)
	}
	if got := links["prev"]; got != "https://api.example/networks?endingBefore=b" {
		t.Errorf("prev = %q", got)
	}
	if _, ok := links["last"]; ok {
		t.Error("malformed entry should be skipped")
	}
	if len(parseLinks("")) != 0 {
		t.Error("empty header should yield no links")
	}
}
