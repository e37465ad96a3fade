package metrics

import "testing"

func TestResolveServiceName(t *testing.T) {
	cases := []struct {
		url    string
		want   string
		wantOK bool
	}{
		{"https://sentiment-model-abc123-uc.a.run.app", "sentiment-model", true},
		{"https://my-svc-xyz789-ew.run.app", "my-svc", true},
		{"https://svc-abc123-uc.a.run.app/v1/predict", "svc", true},
		{"http://svc-abc123-uc.run.app", "svc", true},
		{"https://SVC-ABC123-UC.a.run.app", "svc", true},
		// too few hyphenated labels to strip hash and region
		{"https://svc-abc123.a.run.app", "", false},
		{"https://svc.a.run.app", "", false},
		// wrong domain entirely
		{"https://svc-abc123-uc.example.com", "", false},
		{"https://run.app", "", false},
		{"", "", false},
		{"not a url", "", false},
		{"ftp://svc-abc123-uc.a.run.app", "", false},
	}
	for _, tc := range cases {
		got, ok := ResolveServiceName(tc.url)
		if got != tc.want || ok != tc.wantOK {
			t.Fatalf("ResolveServiceName(%q) = (%q, %v), want (%q, %v)", tc.url, got, ok, tc.want, tc.wantOK)
		}
	}
}
