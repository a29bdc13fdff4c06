// Package jobparams parses job parameters given as key=value strings on the command line
// or in the schedule configuration.
//
// A value is typed by inference: an integer becomes a LONG, a number a DOUBLE, an RFC 3339
// timestamp a DATE, anything else a STRING. A type suffix on the key forces the type:
//
//	run.id(long)=7 rate(double)=1 day(date)=2024-06-01T00:00:00Z code(string)=007
package jobparams

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
)

var suffixes = map[string]model.ParameterType{
	"(long)":   model.ParameterTypeLong,
	"(double)": model.ParameterTypeDouble,
	"(date)":   model.ParameterTypeDate,
	"(string)": model.ParameterTypeString,
}

// Parse builds JobParameters from key=value arguments.
func Parse(args []string) (model.JobParameters, error) {
	params := model.NewJobParameters()
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return params, fmt.Errorf("invalid job parameter '%s': expected key=value", arg)
		}
		if err := Put(params, key, value); err != nil {
			return params, err
		}
	}
	return params, nil
}

// FromMap builds JobParameters from a map of raw values, in key order.
func FromMap(values map[string]string) (model.JobParameters, error) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	params := model.NewJobParameters()
	for _, k := range keys {
		if err := Put(params, k, values[k]); err != nil {
			return params, err
		}
	}
	return params, nil
}

// Put stores raw under key, typed by the key suffix or by inference.
func Put(params model.JobParameters, key, raw string) error {
	name, typ := splitType(key)
	if name == "" {
		return fmt.Errorf("invalid job parameter key '%s'", key)
	}
	switch typ {
	case model.ParameterTypeLong:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("job parameter '%s': %w", name, err)
		}
		params.PutLong(name, n)
	case model.ParameterTypeDouble:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("job parameter '%s': %w", name, err)
		}
		params.PutDouble(name, f)
	case model.ParameterTypeDate:
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return fmt.Errorf("job parameter '%s': %w", name, err)
		}
		params.PutDate(name, ts)
	case model.ParameterTypeString:
		params.PutString(name, raw)
	default:
		putInferred(params, name, raw)
	}
	return nil
}

func splitType(key string) (string, model.ParameterType) {
	for suffix, typ := range suffixes {
		if strings.HasSuffix(key, suffix) {
			return strings.TrimSuffix(key, suffix), typ
		}
	}
	return key, ""
}

func putInferred(params model.JobParameters, name, raw string) {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		params.PutLong(name, n)
		return
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		params.PutDouble(name, f)
		return
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		params.PutDate(name, ts)
		return
	}
	params.PutString(name, raw)
}
