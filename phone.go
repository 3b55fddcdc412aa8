package accounts

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/nyaruka/phonenumbers"
)

// NormalizePhone parses number and formats it as E.164
func NormalizePhone(number, region string) (string, error) {
	num, err := phonenumbers.Parse(strings.TrimSpace(number), strings.ToUpper(region))
	if err != nil {
		return "", err
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", errInvalidPhone
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

var errInvalidPhone = errors.New("must be a valid phone number")

func phoneRule(region string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if strings.TrimSpace(s) == "" {
			return nil
		}
		if _, err := NormalizePhone(s, region); err != nil {
			return errInvalidPhone
		}
		return nil
	}
}
