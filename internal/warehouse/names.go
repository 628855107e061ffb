package warehouse

import (
	"fmt"
	"regexp"
	"strings"

	pkgerrors "github.com/angelmondragon/salespulse/pkg/errors"
	"github.com/go-playground/validator/v10"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("sqlident", func(fl validator.FieldLevel) bool {
		return identRe.MatchString(fl.Field().String())
	})
	return v
}

type tableName struct {
	Schema string `validate:"omitempty,sqlident"`
	Name   string `validate:"required,sqlident"`
}

// ParseTableName splits SCHEMA.NAME (or a bare NAME) and validates both parts as
// plain identifiers so they can be spliced into SQL.
func ParseTableName(name string) (schema, table string, err error) {
	parts := strings.Split(strings.TrimSpace(name), ".")
	var tn tableName
	switch len(parts) {
	case 1:
		tn.Name = parts[0]
	case 2:
		tn.Schema, tn.Name = parts[0], parts[1]
		if tn.Schema == "" {
			return "", "", invalidName(name, nil)
		}
	default:
		return "", "", invalidName(name, nil)
	}
	if err := validate.Struct(tn); err != nil {
		return "", "", invalidName(name, err)
	}
	return tn.Schema, tn.Name, nil
}

func invalidName(name string, err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid table name %q", name))
}
