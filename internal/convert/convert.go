// Package convert coerces raw source values into typed values according to a
// field mapping, validating formats along the way.
package convert

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrRequiredFieldEmpty is returned when a required mapping receives an
	// empty raw value.
	ErrRequiredFieldEmpty = errors.New("required field is empty")
	// ErrEmptyNotAllowed is returned when an optional mapping that does not
	// allow empty values receives one.
	ErrEmptyNotAllowed = errors.New("empty value not allowed")
)

var phoneRe = regexp.MustCompile(`^[+\d\s\-()]{7,20}$`)

const (
	dateLayout     = "2006-01-02"
	datetimeLayout = "2006-01-02 15:04:05"
)

// Params is the subset of a field mapping the converter needs. Keeping it
// local avoids a dependency cycle with the mapping package.
type Params struct {
	DataType     string
	Required     bool
	AllowEmpty   bool
	ValueMapping map[string]string
}

// Convert coerces raw into the mapping's data type. Empty input fails for
// required mappings, fails for mappings that disallow empty values, and
// otherwise yields nil. After coercion, a value-mapping entry keyed by the
// raw value replaces the result (applied post-conversion, pre-storage).
func Convert(raw string, p Params) (any, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		if p.Required {
			return nil, ErrRequiredFieldEmpty
		}
		if !p.AllowEmpty {
			return nil, ErrEmptyNotAllowed
		}
		return nil, nil
	}

	value, err := coerce(trimmed, p.DataType)
	if err != nil {
		return nil, err
	}

	if p.ValueMapping != nil {
		if mapped, ok := p.ValueMapping[trimmed]; ok {
			return mapped, nil
		}
	}
	return value, nil
}

func coerce(raw, dataType string) (any, error) {
	switch dataType {
	case "string", "text", "":
		return raw, nil

	case "email":
		addr, err := mail.ParseAddress(raw)
		if err != nil || addr.Address != raw {
			return nil, errors.New("Invalid email format")
		}
		return strings.ToLower(raw), nil

	case "phone":
		if !phoneRe.MatchString(raw) {
			return nil, errors.New("Invalid phone format")
		}
		return raw, nil

	case "url":
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, errors.New("Invalid URL format")
		}
		return raw, nil

	case "integer":
		// Tolerate decimal notation that carries no fraction ("42.0").
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(normalizeNumber(raw), 64)
		if err != nil || f != float64(int64(f)) {
			return nil, errors.New("Invalid integer value")
		}
		return int64(f), nil

	case "decimal":
		f, err := strconv.ParseFloat(normalizeNumber(raw), 64)
		if err != nil {
			return nil, errors.New("Invalid decimal value")
		}
		return f, nil

	case "date":
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return nil, errors.New("Invalid date format (expected YYYY-MM-DD)")
		}
		return t.Format(dateLayout), nil

	case "datetime":
		t, err := time.Parse(datetimeLayout, raw)
		if err != nil {
			return nil, errors.New("Invalid datetime format (expected YYYY-MM-DD HH:MM:SS)")
		}
		return t.Format(datetimeLayout), nil

	case "boolean":
		switch strings.ToLower(raw) {
		case "true", "1", "yes", "ja", "y", "on":
			return true, nil
		case "false", "0", "no", "nein", "n", "off":
			return false, nil
		}
		return nil, errors.New("Invalid boolean value")

	case "json", "array":
		// Already-valid JSON passes through; anything else is serialized.
		if json.Valid([]byte(raw)) {
			return raw, nil
		}
		b, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("cannot serialize value: %w", err)
		}
		return string(b), nil

	default:
		return nil, fmt.Errorf("unsupported data type %q", dataType)
	}
}

// normalizeNumber strips thousands separators and accepts a decimal comma.
func normalizeNumber(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, " ", "")
	if strings.Contains(s, ",") && strings.Contains(s, ".") {
		// "1.234,56" -> "1234.56"
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	} else if strings.Contains(s, ",") {
		s = strings.Replace(s, ",", ".", 1)
	}
	return s
}

// IsEmptyErr reports whether err is one of the empty-value sentinel errors.
func IsEmptyErr(err error) bool {
	return errors.Is(err, ErrRequiredFieldEmpty) || errors.Is(err, ErrEmptyNotAllowed)
}
