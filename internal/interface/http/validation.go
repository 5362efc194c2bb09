package http

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/classquest/classroom-hub/internal/domain/student"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	validate   *validator.Validate
	translator ut.Translator
)

// slotTag checks avatar slot names.
const slotTag = "avatar_slot"

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Report JSON field names instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(slotTag, func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || student.Slot(s).IsValid()
	})
	_ = validate.RegisterTranslation(slotTag, translator,
		func(ut.Translator) error { return nil },
		func(ut.Translator, validator.FieldError) string {
			return "must be one of body, head, hat, weapon"
		},
	)
}

// fieldErrors is a request validation failure keyed by JSON field.
type fieldErrors struct {
	fields map[string]string
}

func (e *fieldErrors) Error() string {
	keys := make([]string, 0, len(e.fields))
	for k := range e.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.fields[k])
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldPath(fe)] = fe.Translate(translator)
	}
	return &fieldErrors{fields: fields}
}

// fieldPath drops the root struct name: "createCardRequest.name" -> "name".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}
