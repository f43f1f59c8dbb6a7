package durfmt

import (
	"testing"
	"time"
)

func TestCompact(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{0, "0µs"},
		{-time.Second, "0µs"},
		{420 * time.Microsecond, "420µs"},
		{time.Millisecond, "1ms"},
		{999 * time.Millisecond, "999ms"},
		{time.Second, "1.0s"},
		{2500 * time.Millisecond, "2.5s"},
		{90 * time.Second, "1m30s"},
		{61 * time.Second, "1m01s"},
		{10 * time.Minute, "10m00s"},
	}
	for _, c := range cases {
		if got := Compact(c.d); got != c.want {
			t.Fatalf("Compact(%v) = %q, want %q", c.d, got, c.want)
		}
	}
}
