package browser

import "testing"

func TestPageURL(t *testing.T) {
	cases := []struct {
		name string
		s    Session
		want string
	}{
		{"plain id", Session{VideoID: "dQw4w9WgXcQ"}, "https://www.youtube.com/live_chat?v=dQw4w9WgXcQ"},
		{"id needing escape", Session{VideoID: "a&b=c d"}, "https://www.youtube.com/live_chat?v=a%26b%3Dc+d"},
		{"custom base", Session{VideoID: "x", PageBase: "http://127.0.0.1:9222/live_chat"}, "http://127.0.0.1:9222/live_chat?v=x"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.s.pageURL(); got != tc.want {
				t.Errorf("pageURL()=%q want %q", got, tc.want)
			}
		})
	}
}
