package validation

import (
	"testing"
)

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"hello", 10, "hello"},
		{"  hello  ", 10, "hello"},
		{"hello world", 5, "hello"},
		{"hello\x00world", 20, "helloworld"},
	}

	for _, tc := range tests {
		result := SanitizeString(tc.input, tc.maxLen)
		if result != tc.expected {
			t.Errorf("SanitizeString(%q, %d) = %q, want %q", tc.input, tc.maxLen, result, tc.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	// Test valid input
	errors := Validate(
		Required("token", "abc"),
		ValidLatitude("lat", 40.7),
		ValidLongitude("lon", -74.0),
	)
	if len(errors) != 0 {
		t.Errorf("Expected no errors, got %v", errors)
	}

	// Test invalid input
	errors = Validate(
		Required("token", ""),
		ValidLatitude("lat", 97.0),
	)
	if len(errors) != 2 {
		t.Errorf("Expected 2 errors, got %d", len(errors))
	}
	if errors.Error() != "token: is required" {
		t.Errorf("Unexpected first error: %q", errors.Error())
	}
}

func TestValidLatitudeLongitude(t *testing.T) {
	tests := []struct {
		lat, lon float64
		valid    bool
	}{
		{40.7, -74.0, true},
		{-90, -180, true},
		{90, 180, true},
		{90.0001, 0, false},
		{-91, 0, false},
		{0, 181, false},
		{0, -180.5, false},
	}

	for _, tc := range tests {
		errs := Validate(
			ValidLatitude("lat", tc.lat),
			ValidLongitude("lon", tc.lon),
		)
		if (len(errs) == 0) != tc.valid {
			t.Errorf("lat=%v lon=%v valid=%v, want %v", tc.lat, tc.lon, len(errs) == 0, tc.valid)
		}
	}
}

func TestValidRating(t *testing.T) {
	for rating, valid := range map[int]bool{1: true, 3: true, 5: true, 0: false, 6: false, -1: false} {
		err := ValidRating("rating", rating)()
		if (err == nil) != valid {
			t.Errorf("ValidRating(%d) valid=%v, want %v", rating, err == nil, valid)
		}
	}
}

func TestNonNegativeID(t *testing.T) {
	if err := NonNegativeID("segment_id", 0)(); err != nil {
		t.Error("Expected no error for zero id")
	}
	if err := NonNegativeID("segment_id", -5)(); err == nil {
		t.Error("Expected error for negative id")
	}
}

func TestMaxLength(t *testing.T) {
	// Under limit
	err := MaxLength("field", "hello", 10)()
	if err != nil {
		t.Error("Expected no error for string under limit")
	}

	// At limit
	err = MaxLength("field", "hello", 5)()
	if err != nil {
		t.Error("Expected no error for string at limit")
	}

	// Over limit
	err = MaxLength("field", "hello world", 5)()
	if err == nil {
		t.Error("Expected error for string over limit")
	}
}
