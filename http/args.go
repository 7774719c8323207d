package http

import (
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/awantoch/loanscore/constants"
)

// bindArgs fills the struct behind args from path wildcards, then query
// parameters, matching fields by their json name. Only string and int fields
// are bound; anything else is left at its zero value.
func bindArgs(r *http.Request, args any) ValidationErrors {
	v := reflect.ValueOf(args)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return nil
	}
	v = v.Elem()
	t := v.Type()
	query := r.URL.Query()

	var verrs ValidationErrors
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		loc := constants.ValidationLocPath
		raw := r.PathValue(name)
		if raw == "" {
			loc = constants.ValidationLocQuery
			raw = query.Get(name)
		}
		if raw == "" {
			continue
		}
		switch field.Type.Kind() {
		case reflect.String:
			v.Field(i).SetString(raw)
		case reflect.Int, reflect.Int64:
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				verrs = append(verrs, ValidationError{
					Loc:   []any{loc, name},
					Msg:   constants.MsgIntParsing,
					Type:  constants.ValidationTypeInt,
					Input: raw,
				})
				continue
			}
			v.Field(i).SetInt(n)
		}
	}
	return verrs
}
