// Package numparse converts command and settings tokens to numbers the
// forgiving way operators expect: leading blanks are skipped, trailing junk
// is ignored and an unparseable token yields zero.
package numparse

import (
	"strconv"
	"strings"
)

// Atof parses the longest float prefix of s.
func Atof(s string) float64 {
	s = strings.TrimLeft(s, " \t\r\n")
	end := floatPrefix(s)
	for end > 0 {
		if v, err := strconv.ParseFloat(s[:end], 64); err == nil {
			return v
		}
		end--
	}
	return 0
}

// Atoi parses the longest decimal integer prefix of s.
func Atoi(s string) int {
	s = strings.TrimLeft(s, " \t\r\n")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	v, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0
	}
	return int(v)
}

// Word parses a bus data word: "#1A2B" is hexadecimal, anything else decimal.
func Word(s string) uint16 {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "#") {
		hex := s[1:]
		end := 0
		for end < len(hex) && isHex(hex[end]) {
			end++
		}
		v, err := strconv.ParseUint(hex[:end], 16, 64)
		if err != nil {
			return 0
		}
		return uint16(v)
	}
	return uint16(Atoi(s))
}

// IsNumeric reports whether every byte of s belongs to "0123456789.Ee+-".
func IsNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !strings.ContainsRune("0123456789.Ee+-", rune(s[i])) {
			return false
		}
	}
	return true
}

func floatPrefix(s string) int {
	end := 0
	for end < len(s) && strings.ContainsRune("0123456789.eE+-", rune(s[end])) {
		end++
	}
	return end
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
