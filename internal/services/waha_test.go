package services

import "testing"

func TestNormalizeChatID(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"bare national number", "5512345678", "525512345678@c.us"},
		{"national with plus", "+5512345678", "525512345678@c.us"},
		{"already with country code", "525512345678", "525512345678@c.us"},
		{"international with plus", "+525512345678", "525512345678@c.us"},
		{"already a chat id", "525512345678@c.us", "525512345678@c.us"},
		{"group id untouched", "1234567890-987654@g.us", "1234567890-987654@g.us"},
		{"surrounding whitespace", " 5512345678 ", "525512345678@c.us"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeChatID(tc.input); got != tc.want {
				t.Errorf("NormalizeChatID(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}
