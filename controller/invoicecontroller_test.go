package controller

import (
	"fmt"
	"testing"
	"time"
)

func TestFormatInvoiceNumber(t *testing.T) {
	now := time.Now()
	year := now.Year()
	yy := fmt.Sprintf("%02d", year%100)
	yyyy := fmt.Sprintf("%04d", year)

	tests := []struct {
		name    string
		in      string
		counter int
		want    string
	}{
		{
			name:    "YYYY + zero-padded counter (width 4)",
			in:      "INV-%YYYY%-%04C%",
			counter: 7,
			want:    fmt.Sprintf("INV-%s-0007", yyyy),
		},
		{
			name:    "YY + non-padded counter (width given but no leading zero flag)",
			in:      "R-%YY%-%3C%",
			counter: 42,
			want:    fmt.Sprintf("R-%s-42", yy),
		},
		{
			name:    "Only year, no counter",
			in:      "INV-%YYYY%",
			counter: 1,
			want:    fmt.Sprintf("INV-%s", yyyy),
		},
		{
			name:    "Multiple counter placeholders are replaced (same value/format)",
			in:      "X-%02C%-%02C%",
			counter: 3,
			want:    "X-03-03",
		},
		{
			name:    "Large padding width",
			in:      "%YYYY%-%06C%",
			counter: 1234,
			want:    fmt.Sprintf("%s-001234", yyyy),
		},
		{
			name:    "YY and YYYY used at the same time",
			in:      "Y%YY%/%YYYY%-%02C%",
			counter: 9,
			want:    fmt.Sprintf("Y%s/%s-09", yy, yyyy),
		},
		{
			name:    "No known placeholders",
			in:      "PLAIN",
			counter: 99,
			want:    "PLAIN",
		},
		{
			name:    "Plain %C% without width",
			in:      "INV-%C%",
			counter: 42,
			want:    "INV-42",
		},
		{
			name:    "Multiple %C% occurrences",
			in:      "A-%C%-B-%C%",
			counter: 7,
			want:    "A-7-B-7",
		},
		{
			name:    "Edge: %0C% (zero flag without width) behaves like %C%",
			in:      "EDGE-%0C%",
			counter: 5,
			want:    "EDGE-5",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := formatInvoiceNumber(tc.in, tc.counter)
			if got != tc.want {
				t.Fatalf("formatInvoiceNumber(%q, %d) = %q, want %q",
					tc.in, tc.counter, got, tc.want)
			}
		})
	}
}

// Benchmark to measure performance of the replacer function
func BenchmarkFormatInvoiceNumber(b *testing.B) {
	in := "INV-%YYYY%-%06C%"
	for i := 0; i < b.N; i++ {
		_ = formatInvoiceNumber(in, 123)
	}
}
