package validator

import (
	"errors"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	once     sync.Once
	validate *govalidator.Validate
	// trans is the singleton English translator for validation errors.
	trans ut.Translator
)

var (
	socPattern  = regexp.MustCompile(`^\d{2}-\d{4}$`)
	zip5Pattern = regexp.MustCompile(`^\d{5}$`)
)

// Setup builds the validator with English translations and the custom
// `soc` and `zip5` tags. Safe to call more than once.
func Setup() {
	once.Do(func() {
		v := govalidator.New(govalidator.WithRequiredStructEnabled())

		// Use JSON tag name for field names in error messages.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		_ = v.RegisterValidation("soc", func(fl govalidator.FieldLevel) bool {
			return socPattern.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("zip5", func(fl govalidator.FieldLevel) bool {
			return zip5Pattern.MatchString(fl.Field().String())
		})

		enLocale := en.New()
		uni := ut.New(enLocale, enLocale)
		trans, _ = uni.GetTranslator("en")
		_ = en_translations.RegisterDefaultTranslations(v, trans)

		registerMessage(v, "soc", "{0} must be an occupation code like 47-2111")
		registerMessage(v, "zip5", "{0} must be a 5-digit zip code")

		validate = v
	})
}

func registerMessage(v *govalidator.Validate, tag, text string) {
	_ = v.RegisterTranslation(tag, trans,
		func(ut ut.Translator) error {
			return ut.Add(tag, text, true)
		},
		func(ut ut.Translator, fe govalidator.FieldError) string {
			msg, _ := ut.T(tag, fe.Field())
			return msg
		},
	)
}

// Struct validates s and returns a field → message map, or nil when valid.
func Struct(s any) map[string]string {
	Setup()
	if err := validate.Struct(s); err != nil {
		return TranslateErrors(err)
	}
	return nil
}

// TranslateErrors takes a validation error and returns a map of
// field name → human-readable error message. If the error is not a
// validation error, it returns a single-key map with "detail".
func TranslateErrors(err error) map[string]string {
	fields := make(map[string]string)

	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[fe.Field()] = fe.Translate(trans)
		}
		return fields
	}

	fields["detail"] = err.Error()
	return fields
}

// Format flattens a field map into one stable line for log output.
func Format(fields map[string]string) string {
	msgs := make([]string, 0, len(fields))
	for _, msg := range fields {
		msgs = append(msgs, msg)
	}
	sort.Strings(msgs)
	return strings.Join(msgs, "; ")
}
