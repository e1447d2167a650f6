package service

import "fmt"

const (
	firstGrade = 'A'
	lastGrade  = 'E'
	lastLevel  = 5
)

// SuccessorCodes lists the stages a clear of code unlocks: the next level of
// the same grade, or level 1 of the next grade after level 5. The final stage
// has none. Malformed codes have none either.
func SuccessorCodes(code string) []string {
	if len(code) != 2 {
		return nil
	}
	grade, level := code[0], int(code[1]-'0')
	if grade < firstGrade || grade > lastGrade || level < 1 || level > lastLevel {
		return nil
	}
	if level < lastLevel {
		return []string{fmt.Sprintf("%c%d", grade, level+1)}
	}
	if grade < lastGrade {
		return []string{fmt.Sprintf("%c%d", grade+1, 1)}
	}
	return nil
}

// DefaultCatalog is every stage code in play order.
func DefaultCatalog() []string {
	codes := make([]string, 0, (lastGrade-firstGrade+1)*lastLevel)
	for g := byte(firstGrade); g <= lastGrade; g++ {
		for l := 1; l <= lastLevel; l++ {
			codes = append(codes, fmt.Sprintf("%c%d", g, l))
		}
	}
	return codes
}
