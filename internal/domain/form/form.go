// Package form describes the ordered business fields a conversation collects
// for each flow and the normalisation applied before a value is stored.
package form

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"messenger-connector/internal/domain/entities"
	"messenger-connector/internal/util"
)

var (
	ErrEmptyValue   = errors.New("empty value")
	ErrInvalidValue = errors.New("invalid value")
)

const maxFreeTextLength = 200

// Field is one slot of a form. Strict fields only accept values that pass
// their own validation; free-text fields accept any non-empty answer.
type Field struct {
	Key    string
	Strict bool
}

type Form struct {
	Flow   string
	Fields []Field
}

var (
	WorkerForm = Form{
		Flow: entities.FlowWorker,
		Fields: []Field{
			{Key: entities.FieldGender, Strict: true},
			{Key: entities.FieldCity},
			{Key: entities.FieldExperience},
			{Key: entities.FieldPhone, Strict: true},
		},
	}

	OrderForm = Form{
		Flow: entities.FlowOrder,
		Fields: []Field{
			{Key: entities.FieldProductCode, Strict: true},
			{Key: entities.FieldQuantity, Strict: true},
			{Key: entities.FieldPhone, Strict: true},
			{Key: entities.FieldAddress},
		},
	}
)

// ForFlow returns the form of a flow, defaulting to the worker form.
func ForFlow(flow string) Form {
	if flow == entities.FlowOrder {
		return OrderForm
	}
	return WorkerForm
}

// NextMissing returns the first field, in form order, that has no value yet.
func (f Form) NextMissing(c *entities.Conversation) (Field, bool) {
	for _, field := range f.Fields {
		if c.Field(field.Key) == "" {
			return field, true
		}
	}
	return Field{}, false
}

func (f Form) Complete(c *entities.Conversation) bool {
	_, missing := f.NextMissing(c)
	return !missing
}

func (f Form) Has(key string) bool {
	for _, field := range f.Fields {
		if field.Key == key {
			return true
		}
	}
	return false
}

func (f Form) Keys() []string {
	keys := make([]string, 0, len(f.Fields))
	for _, field := range f.Fields {
		keys = append(keys, field.Key)
	}
	return keys
}

// Apply stores normalised values into empty fields of the form and returns
// the keys that were set. Filled fields are never overwritten and values
// failing normalisation are dropped.
func (f Form) Apply(c *entities.Conversation, values map[string]string) []string {
	var applied []string
	for _, field := range f.Fields {
		raw, ok := values[field.Key]
		if !ok || c.Field(field.Key) != "" {
			continue
		}
		value, err := Normalize(field.Key, raw)
		if err != nil {
			continue
		}
		c.SetField(field.Key, value)
		applied = append(applied, field.Key)
	}
	return applied
}

// Reset clears the given fields, or every field of the form when none are named.
func (f Form) Reset(c *entities.Conversation, keys ...string) {
	if len(keys) == 0 {
		keys = f.Keys()
	}
	for _, key := range keys {
		c.SetField(key, "")
	}
}

var (
	productCodePattern = regexp.MustCompile(`^[A-Z]{1,4}-?\d{1,5}$`)
	quantityPattern    = regexp.MustCompile(`\d+`)
	arabicDigits       = strings.NewReplacer(
		"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
		"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
	)
)

var genderKeywords = []struct {
	gender   string
	keywords []string
}{
	{"homme", []string{"homme", "male", "man", "رجل", "راجل", "ذكر", "h"}},
	{"femme", []string{"femme", "female", "woman", "امرأة", "مرا", "انثى", "أنثى", "بنت", "f"}},
}

// Normalize validates a raw answer for a field and returns its stored form.
func Normalize(key, raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", ErrEmptyValue
	}

	switch key {
	case entities.FieldPhone:
		phone, ok := util.FindPhone(value)
		if !ok {
			return "", ErrInvalidValue
		}
		return phone, nil

	case entities.FieldQuantity:
		digits := quantityPattern.FindString(arabicDigits.Replace(value))
		n, err := strconv.Atoi(digits)
		if err != nil || n <= 0 || n > 1000 {
			return "", ErrInvalidValue
		}
		return strconv.Itoa(n), nil

	case entities.FieldGender:
		return normalizeGender(value)

	case entities.FieldProductCode:
		code := strings.ToUpper(strings.ReplaceAll(value, " ", ""))
		if !productCodePattern.MatchString(code) {
			return "", ErrInvalidValue
		}
		return code, nil
	}

	if utf8.RuneCountInString(value) > maxFreeTextLength {
		value = string([]rune(value)[:maxFreeTextLength])
	}
	return value, nil
}

func normalizeGender(value string) (string, error) {
	lower := strings.ToLower(value)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '!' || r == '?' || r == '،'
	})
	for _, candidate := range genderKeywords {
		for _, keyword := range candidate.keywords {
			for _, word := range words {
				if word == keyword {
					return candidate.gender, nil
				}
			}
		}
	}
	return "", ErrInvalidValue
}
