package suggest

import "testing"

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{
			name:     "raw json untouched",
			raw:      `{"date": 0}`,
			expected: `{"date": 0}`,
		},
		{
			name:     "json fence",
			raw:      "```json\n{\"date\": 0}\n```",
			expected: `{"date": 0}`,
		},
		{
			name:     "bare fence",
			raw:      "```\n{\"date\": 0}\n```",
			expected: `{"date": 0}`,
		},
		{
			name:     "surrounding whitespace",
			raw:      "\n  {\"date\": 0}  \n",
			expected: `{"date": 0}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanModelJSON(tt.raw); got != tt.expected {
				t.Errorf("cleanModelJSON(%q) = %q, want %q", tt.raw, got, tt.expected)
			}
		})
	}
}
