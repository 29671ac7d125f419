package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty string", "", nil},
		{"whitespace only", "   ", nil},
		{"only commas", ",, ,", nil},
		{"single value", "AAPL", []string{"AAPL"}},
		{"varied spacing", "AAPL,  MSFT , NVDA", []string{"AAPL", "MSFT", "NVDA"}},
		{"trailing comma", "AAPL,", []string{"AAPL"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseCSV(tt.input))
		})
	}
}

func TestParseSymbols(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{"no args", nil, nil},
		{"separate args", []string{"aapl", "msft"}, []string{"AAPL", "MSFT"}},
		{"comma list", []string{"aapl,msft, nvda"}, []string{"AAPL", "MSFT", "NVDA"}},
		{"mixed", []string{"aapl,msft", "nvda"}, []string{"AAPL", "MSFT", "NVDA"}},
		{"duplicates keep first position", []string{"msft", "AAPL,msft", "aapl"}, []string{"MSFT", "AAPL"}},
		{"blank entries", []string{" ", "ibm,,"}, []string{"IBM"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseSymbols(tt.args...))
		})
	}
}
