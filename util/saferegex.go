package util

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
)

// Constants for regex validation
const (
	// MaxRegexLength is the maximum allowed regex pattern length
	MaxRegexLength = 256
	// maxNestingDepth is the deepest group nesting a search pattern may use
	maxNestingDepth = 3
	// maxAlternations caps the number of | branches
	maxAlternations = 50
)

var (
	repetitionRe = regexp.MustCompile(`\{(\d+)(?:,\d*)?\}`)

	nestedQuantifierRes = []*regexp.Regexp{
		regexp.MustCompile(`\([^)]*\*\)\*`),        // (a*)*
		regexp.MustCompile(`\([^)]*\+\)\+`),        // (a+)+
		regexp.MustCompile(`\([^)]*\?\)\?`),        // (a?)?
		regexp.MustCompile(`\([^)]*\{[^}]*\}\)\{`), // (a{n}){m}
		regexp.MustCompile(`\([^)]*[*+]\)[*+]`),    // (a*)+ and friends
	}
)

// RegexValidator rejects regex patterns that are too long, malformed or prone
// to catastrophic backtracking. Search regexes are evaluated by MongoDB's PCRE
// engine, so syntax is checked with regexp2 rather than RE2.
type RegexValidator struct {
	maxLength int
}

// NewRegexValidator creates a RegexValidator with the default length limit
func NewRegexValidator() *RegexValidator {
	return NewRegexValidatorWithLength(MaxRegexLength)
}

// NewRegexValidatorWithLength creates a RegexValidator with a custom length limit.
// Non-positive values fall back to MaxRegexLength.
func NewRegexValidatorWithLength(maxLength int) *RegexValidator {
	if maxLength <= 0 {
		maxLength = MaxRegexLength
	}
	return &RegexValidator{maxLength: maxLength}
}

// ValidatePattern validates a regex pattern for safety
func (rv *RegexValidator) ValidatePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("regex pattern cannot be empty")
	}

	if len(pattern) > rv.maxLength {
		return fmt.Errorf("regex pattern too long: %d characters (max %d)", len(pattern), rv.maxLength)
	}

	if err := checkForReDoSPatterns(pattern); err != nil {
		return err
	}

	if n := strings.Count(pattern, "|"); n > maxAlternations {
		return fmt.Errorf("too many alternations: %d (max %d)", n, maxAlternations)
	}

	if err := checkForExcessiveRepetition(pattern); err != nil {
		return err
	}

	if err := checkNestingDepth(pattern); err != nil {
		return err
	}

	if _, err := regexp2.Compile(pattern, regexp2.IgnoreCase); err != nil {
		return fmt.Errorf("invalid regex pattern: %w", err)
	}

	return nil
}

// checkForReDoSPatterns checks for dangerous nested quantifier patterns
func checkForReDoSPatterns(pattern string) error {
	for _, dangerous := range []string{"++", "**", "*+", "+*", ")+*", ")*+", ")+{", ")*{"} {
		if strings.Contains(pattern, dangerous) {
			return fmt.Errorf("pattern contains nested quantifiers which may cause ReDoS: found '%s'", dangerous)
		}
	}
	for _, re := range nestedQuantifierRes {
		if re.MatchString(pattern) {
			return fmt.Errorf("pattern contains nested quantifiers which may cause ReDoS")
		}
	}
	return nil
}

// checkForExcessiveRepetition rejects repetition counts of 1000 or more
func checkForExcessiveRepetition(pattern string) error {
	for _, match := range repetitionRe.FindAllStringSubmatch(pattern, -1) {
		count, err := strconv.Atoi(match[1])
		if err != nil || count >= 1000 {
			return fmt.Errorf("excessive repetition: %s (max 999)", match[0])
		}
	}
	return nil
}

func checkNestingDepth(pattern string) error {
	depth := 0
	escaped := false
	for _, r := range pattern {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case '(':
			depth++
			if depth > maxNestingDepth {
				return fmt.Errorf("pattern has excessive nesting depth: %d (max %d)", depth, maxNestingDepth)
			}
		case ')':
			depth--
			if depth < 0 {
				return fmt.Errorf("pattern has unmatched closing parenthesis")
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("pattern has unmatched parentheses")
	}
	return nil
}
