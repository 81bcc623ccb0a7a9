package errors

import (
	"math"
	"strings"
	"testing"
)

func TestValidateThreshold(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		required bool
		wantErr  bool
	}{
		{"positive required", 1, true, false},
		{"positive optional", 0.5, false, false},
		{"zero optional", 0, false, false},

		{"zero required", 0, true, true},
		{"negative required", -1, true, true},
		{"negative optional", -1, false, true},
		{"NaN", math.NaN(), false, true},
		{"infinity", math.Inf(1), true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateThreshold("thresh", tt.value, tt.required)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateThreshold(%v, %v) error = %v, wantErr %v", tt.value, tt.required, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidThreshold) {
				t.Errorf("ValidateThreshold() code = %v, want %v", GetCode(err), ErrCodeInvalidThreshold)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"relative", "data/network.csv", false},
		{"absolute", "/tmp/network.json", false},

		{"empty", "", true},
		{"too long", strings.Repeat("a", 5000), true},
		{"null byte", "net\x00work.csv", true},
		{"newline", "net\nwork.csv", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateExtension(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"csv", "network.csv", false},
		{"upper case", "NETWORK.CSV", false},
		{"json", "out/network.json", false},

		{"parquet", "network.parquet", true},
		{"no extension", "network", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateExtension(tt.input, ".csv", ".json")
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateExtension(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateCOMIDs(t *testing.T) {
	if err := ValidateCOMIDs([]int64{1, 2, 3}); err != nil {
		t.Errorf("ValidateCOMIDs() error = %v", err)
	}
	if err := ValidateCOMIDs(nil); err != nil {
		t.Errorf("ValidateCOMIDs(nil) error = %v", err)
	}
	if err := ValidateCOMIDs([]int64{1, 0}); !Is(err, ErrCodeInvalidInput) {
		t.Errorf("ValidateCOMIDs() error = %v, want %v", err, ErrCodeInvalidInput)
	}
}
