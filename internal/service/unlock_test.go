package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuccessorCodes(t *testing.T) {
	tests := map[string][]string{
		"A1": {"A2"},
		"B4": {"B5"},
		"A5": {"B1"},
		"D5": {"E1"},
		"E5": nil,
		"Z9": nil,
		"A0": nil,
		"":   nil,
	}
	for code, want := range tests {
		assert.Equal(t, want, SuccessorCodes(code), code)
	}
}

func TestDefaultCatalog(t *testing.T) {
	codes := DefaultCatalog()
	assert.Len(t, codes, 25)
	assert.Equal(t, "A1", codes[0])
	assert.Equal(t, "E5", codes[len(codes)-1])
}
