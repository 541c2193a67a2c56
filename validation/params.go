// Package validation screens raw search query strings before they reach the
// compiler: key syntax, value sizes and a few abuse patterns.
package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/giygas/openfda-api/interfaces"
	"github.com/giygas/openfda-api/query"
)

// Limits of an accepted query string
const (
	MaxParams     = 64
	MaxListItems  = 100
	MaxValueBytes = 200
	maxRepetition = 10
)

var (
	_ interfaces.ParamValidator = (*ParamValidator)(nil)

	// A filter key is field, join.field or either with the operator suffix
	keyRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*(\.[A-Za-z][A-Za-z0-9_]*)?(` + query.OperatorSuffix + `)?$`)

	// Single-valued reserved parameters. Repeated paging keys are not listed:
	// like filters they keep their first value.
	singleParams = []string{query.ParamItem, query.ParamFormat}
	listParams   = []string{query.ParamJoin, query.ParamFields}
)

// ParamValidator implements interfaces.ParamValidator
type ParamValidator struct{}

// NewParamValidator creates a new parameter validator
func NewParamValidator() *ParamValidator {
	return &ParamValidator{}
}

func reject(format string, args ...any) error {
	return &query.BadRequestError{Reason: query.ReasonParameter, Message: fmt.Sprintf(format, args...)}
}

// ValidateParams rejects query strings the compiler should never see
func (v *ParamValidator) ValidateParams(values url.Values) error {
	if len(values) > MaxParams {
		return reject("too many query parameters: maximum %d allowed", MaxParams)
	}

	for key, vals := range values {
		switch {
		case slices.Contains(singleParams, key):
			if len(vals) > 1 {
				return reject("parameter %s may only be given once", key)
			}
		case slices.Contains(listParams, key):
			if err := v.validateList(key, vals); err != nil {
				return err
			}
			continue
		case !keyRegex.MatchString(key):
			return reject("invalid parameter name %q", key)
		}

		for _, val := range vals {
			if err := v.ValidateValue(val); err != nil {
				return reject("invalid value for %s: %v", key, err)
			}
		}
	}
	return nil
}

func (v *ParamValidator) validateList(key string, vals []string) error {
	count := 0
	for _, raw := range vals {
		for item := range strings.SplitSeq(raw, ",") {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			if count++; count > MaxListItems {
				return reject("too many entries in %s: maximum %d allowed", key, MaxListItems)
			}
			if !keyRegex.MatchString(item) || strings.HasSuffix(item, query.OperatorSuffix) {
				return reject("invalid entry %q in %s", item, key)
			}
		}
	}
	return nil
}

// ValidateValue checks a single filter value
func (v *ParamValidator) ValidateValue(value string) error {
	if len(value) > MaxValueBytes {
		return fmt.Errorf("too long: maximum %d bytes", MaxValueBytes)
	}
	if !utf8.ValidString(value) {
		return fmt.Errorf("not valid UTF-8")
	}
	for _, r := range value {
		if unicode.IsControl(r) {
			return fmt.Errorf("contains control characters")
		}
	}
	if hasExcessiveRepetition(value) {
		return fmt.Errorf("contains excessive character repetition")
	}
	return nil
}

// hasExcessiveRepetition reports a character repeated more than
// maxRepetition times in a row
func hasExcessiveRepetition(input string) bool {
	run := 0
	var prev rune = -1
	for _, r := range input {
		if r == prev {
			run++
			if run > maxRepetition {
				return true
			}
			continue
		}
		prev, run = r, 1
	}
	return false
}
