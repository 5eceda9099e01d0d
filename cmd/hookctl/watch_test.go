package main

import "testing"

func TestWSURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:8080":      "ws://localhost:8080/v1/deliveries/ws",
		"https://hooks.example.com/": "wss://hooks.example.com/v1/deliveries/ws",
		"http://gw.internal/relay":   "ws://gw.internal/relay/v1/deliveries/ws",
	}
	for in, want := range cases {
		got, err := wsURL(in)
		if err != nil {
			t.Fatalf("wsURL(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("wsURL(%q) = %q, want %q", in, got, want)
		}
	}
}
