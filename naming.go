package savechange

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// TableNamer provides a custom table name for a model.
type TableNamer interface {
	TableName() string
}

var tableNamerType = reflect.TypeOf((*TableNamer)(nil)).Elem()

func resolveTableName(model any) (string, error) {
	switch v := model.(type) {
	case nil:
		return "", errors.New("savechange: nil model")
	case string:
		name := strings.TrimSpace(v)
		if name == "" {
			return "", errors.New("savechange: empty table name")
		}
		return name, nil
	case TableNamer:
		return namerTable(v)
	}

	typ := reflect.TypeOf(model)
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return "", fmt.Errorf("savechange: unsupported model %T", model)
	}
	if reflect.PointerTo(typ).Implements(tableNamerType) {
		return namerTable(reflect.New(typ).Interface().(TableNamer))
	}
	if typ.Name() == "" {
		return "", fmt.Errorf("savechange: cannot derive table name for anonymous struct %v", typ)
	}
	return inflection.Plural(toSnakeCase(typ.Name())), nil
}

func namerTable(n TableNamer) (string, error) {
	name := strings.TrimSpace(n.TableName())
	if name == "" {
		return "", fmt.Errorf("savechange: TableName returned empty string. %T", n)
	}
	return name, nil
}

func toSnakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if !unicode.IsUpper(r) {
			b.WriteRune(r)
			continue
		}
		if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
