package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhoneSuffix(t *testing.T) {
	tests := []struct {
		name     string
		phone    string
		expected string
	}{
		{name: "formatted with country code", phone: "+55 (11) 98765-4321", expected: "87654321"},
		{name: "jid user part", phone: "5511987654321", expected: "87654321"},
		{name: "short number keeps all digits", phone: "12-34", expected: "1234"},
		{name: "no digits", phone: "abc", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PhoneSuffix(tt.phone))
		})
	}
}

func TestSamePhone(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		same bool
	}{
		{name: "with and without country code", a: "+55 11 98765-4321", b: "11987654321", same: true},
		{name: "last digit differs", a: "1187654321", b: "11987654320", same: false},
		{name: "both empty never match", a: "", b: "", same: false},
		{name: "different numbers", a: "5511912345678", b: "5511987654321", same: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.same, SamePhone(tt.a, tt.b))
		})
	}
}

func TestParseJID(t *testing.T) {
	tests := []struct {
		name     string
		phone    string
		expected string
	}{
		{name: "adds brazil country code to 11 digits", phone: "(11) 98765-4321", expected: "5511987654321@s.whatsapp.net"},
		{name: "adds brazil country code to 10 digits", phone: "1187654321", expected: "551187654321@s.whatsapp.net"},
		{name: "keeps full international number", phone: "+44 20 7946 0958", expected: "442079460958@s.whatsapp.net"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jid, err := ParseJID(tt.phone)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, jid.String())
		})
	}
}
