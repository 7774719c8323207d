package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/awantoch/loanscore/constants"
	"github.com/awantoch/loanscore/features"
	"github.com/awantoch/loanscore/model"
)

// ValidationError is one entry of a 422 response body.
type ValidationError struct {
	Loc   []any  `json:"loc"`
	Msg   string `json:"msg"`
	Type  string `json:"type"`
	Input any    `json:"input,omitempty"`
}

// ValidationErrors is returned when a request body cannot become a UserInput.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = fmt.Sprintf("%v: %s", e.Loc, e.Msg)
	}
	return strings.Join(parts, "; ")
}

// DecodeUserInput parses a prediction request body. Numeric strings are
// accepted for every field, integral numbers for integer fields; anything
// else yields ValidationErrors listing every bad field.
func DecodeUserInput(body []byte) (model.UserInput, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return model.UserInput{}, ValidationErrors{{
				Loc:  []any{constants.ValidationLocBody},
				Msg:  constants.MsgFieldRequired,
				Type: constants.ValidationTypeMissing,
			}}
		}
		return model.UserInput{}, ValidationErrors{jsonError(dec, err)}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return model.UserInput{}, ValidationErrors{{
			Loc:  []any{constants.ValidationLocBody, dec.InputOffset()},
			Msg:  constants.MsgJSONInvalid,
			Type: constants.ValidationTypeJSON,
		}}
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return model.UserInput{}, ValidationErrors{{
			Loc:   []any{constants.ValidationLocBody},
			Msg:   constants.MsgDictType,
			Type:  constants.ValidationTypeDict,
			Input: raw,
		}}
	}

	var in model.UserInput
	var errs ValidationErrors
	for _, col := range features.Schema {
		v, present := obj[col.Field]
		if !present {
			errs = append(errs, ValidationError{
				Loc:  []any{constants.ValidationLocBody, col.Field},
				Msg:  constants.MsgFieldRequired,
				Type: constants.ValidationTypeMissing,
			})
			continue
		}
		num, verr := coerce(col, v)
		if verr != nil {
			errs = append(errs, *verr)
			continue
		}
		if err := assign(&in, col.Field, num); err != nil {
			return model.UserInput{}, err
		}
	}
	if len(errs) > 0 {
		return model.UserInput{}, errs
	}
	return in, nil
}

// assign stores a coerced value in the UserInput field named by field.
func assign(in *model.UserInput, field string, num json.Number) error {
	var err error
	switch field {
	case constants.FieldBankTransactionAverage:
		in.BankTransactionAverage, err = num.Float64()
	case constants.FieldSocialMediaScreentime:
		in.SocialMediaScreentime, err = num.Float64()
	case constants.FieldEcommerceScreenTime:
		in.EcommerceScreenTime, err = num.Float64()
	case constants.FieldCIBILScore:
		in.CIBILScore, err = num.Int64()
	case constants.FieldGeographicalMovement:
		in.GeographicalMovement, err = num.Float64()
	case constants.FieldSocialMediaReach:
		in.SocialMediaReach, err = num.Int64()
	default:
		err = fmt.Errorf("no input field %q", field)
	}
	return err
}

func jsonError(dec *json.Decoder, err error) ValidationError {
	offset := dec.InputOffset()
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		offset = syntaxErr.Offset
	}
	return ValidationError{
		Loc:  []any{constants.ValidationLocBody, offset},
		Msg:  constants.MsgJSONInvalid,
		Type: constants.ValidationTypeJSON,
	}
}

// coerce returns a json.Number holding the field value in its schema kind.
func coerce(col features.Column, v any) (json.Number, *ValidationError) {
	fail := func(typ, msg string) (json.Number, *ValidationError) {
		return "", &ValidationError{
			Loc:   []any{constants.ValidationLocBody, col.Field},
			Msg:   msg,
			Type:  typ,
			Input: v,
		}
	}

	var text string
	var fromString bool
	switch t := v.(type) {
	case json.Number:
		text = t.String()
	case string:
		text = strings.TrimSpace(t)
		fromString = true
	default:
		if col.Kind == features.KindInteger {
			return fail(constants.ValidationTypeIntType, constants.MsgIntType)
		}
		return fail(constants.ValidationTypeFloatType, constants.MsgFloatType)
	}

	if col.Kind == features.KindInteger {
		n, err := strconv.ParseInt(text, 10, 64)
		if err == nil {
			return json.Number(strconv.FormatInt(n, 10)), nil
		}
		if fromString || errors.Is(err, strconv.ErrRange) {
			return fail(constants.ValidationTypeInt, constants.MsgIntParsing)
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil || math.IsInf(f, 0) || f != math.Trunc(f) {
			return fail(constants.ValidationTypeIntFrac, constants.MsgIntFrac)
		}
		// float64(math.MaxInt64) rounds up to 2^63, so the upper bound is exclusive.
		if f >= 1<<63 || f < -(1<<63) {
			return fail(constants.ValidationTypeInt, constants.MsgIntParsing)
		}
		return json.Number(strconv.FormatInt(int64(f), 10)), nil
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return fail(constants.ValidationTypeFloat, constants.MsgFloatParsing)
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fail(constants.ValidationTypeFinite, constants.MsgFinite)
	}
	return json.Number(strconv.FormatFloat(f, 'g', -1, 64)), nil
}
