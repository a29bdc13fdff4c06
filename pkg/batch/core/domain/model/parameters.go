package model

import (
	"crypto/sha256"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/exception"
)

// ParameterType is the declared type of a job parameter value.
type ParameterType string

const (
	ParameterTypeString ParameterType = "STRING"
	ParameterTypeLong   ParameterType = "LONG"
	ParameterTypeDouble ParameterType = "DOUBLE"
	ParameterTypeDate   ParameterType = "DATE"
)

// JobParameters holds the launch parameters of a job. Values are normalized to string,
// int64, float64 or time.Time. Equal parameters identify the same JobInstance.
type JobParameters struct {
	Params map[string]interface{}
}

// NewJobParameters creates an empty JobParameters.
func NewJobParameters() JobParameters {
	return JobParameters{Params: make(map[string]interface{})}
}

// Put stores value under key after normalizing it: Go integer types become int64,
// floats become float64, time.Time is kept in UTC and anything else is formatted as a string.
func (jp JobParameters) Put(key string, value interface{}) {
	jp.Params[key] = normalizeParam(value)
}

// PutString stores a string parameter.
func (jp JobParameters) PutString(key, value string) { jp.Params[key] = value }

// PutLong stores an int64 parameter.
func (jp JobParameters) PutLong(key string, value int64) { jp.Params[key] = value }

// PutDouble stores a float64 parameter.
func (jp JobParameters) PutDouble(key string, value float64) { jp.Params[key] = value }

// PutDate stores a timestamp parameter.
func (jp JobParameters) PutDate(key string, value time.Time) { jp.Params[key] = value.UTC() }

func normalizeParam(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		return v
	case time.Time:
		return v.UTC()
	case float64:
		return v
	case float32:
		return float64(v)
	}
	if n, ok := toInt64(value); ok {
		return n
	}
	return fmt.Sprint(value)
}

// Get returns the raw value under key or nil.
func (jp JobParameters) Get(key string) interface{} {
	return jp.Params[key]
}

// GetString returns a string parameter.
func (jp JobParameters) GetString(key string) (string, bool) {
	s, ok := jp.Params[key].(string)
	return s, ok
}

// GetLong returns an int64 parameter.
func (jp JobParameters) GetLong(key string) (int64, bool) {
	v, ok := jp.Params[key]
	if !ok {
		return 0, false
	}
	if _, isFloat := v.(float64); isFloat {
		return 0, false
	}
	return toInt64(v)
}

// GetInt returns an int64 parameter as int.
func (jp JobParameters) GetInt(key string) (int, bool) {
	n, ok := jp.GetLong(key)
	return int(n), ok
}

// GetDouble returns a float64 parameter.
func (jp JobParameters) GetDouble(key string) (float64, bool) {
	f, ok := jp.Params[key].(float64)
	return f, ok
}

// GetDate returns a timestamp parameter.
func (jp JobParameters) GetDate(key string) (time.Time, bool) {
	t, ok := jp.Params[key].(time.Time)
	return t, ok
}

// Type returns the ParameterType of the value under key.
func (jp JobParameters) Type(key string) (ParameterType, bool) {
	v, ok := jp.Params[key]
	if !ok {
		return "", false
	}
	return typeOf(v), true
}

func typeOf(v interface{}) ParameterType {
	switch v.(type) {
	case int64:
		return ParameterTypeLong
	case float64:
		return ParameterTypeDouble
	case time.Time:
		return ParameterTypeDate
	}
	return ParameterTypeString
}

// Keys returns the parameter names in sorted order.
func (jp JobParameters) Keys() []string {
	keys := make([]string, 0, len(jp.Params))
	for k := range jp.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of parameters.
func (jp JobParameters) Len() int {
	return len(jp.Params)
}

// Copy returns an independent copy.
func (jp JobParameters) Copy() JobParameters {
	out := NewJobParameters()
	for k, v := range jp.Params {
		out.Params[k] = v
	}
	return out
}

// Equal reports whether both parameter sets have the same names, types and values.
func (jp JobParameters) Equal(other JobParameters) bool {
	if len(jp.Params) != len(other.Params) {
		return false
	}
	for k, v := range jp.Params {
		ov, ok := other.Params[k]
		if !ok || !paramValueEqual(v, ov) {
			return false
		}
	}
	return true
}

// Contains reports whether every entry of partial is present in jp with an equal value.
func (jp JobParameters) Contains(partial JobParameters) bool {
	for k, v := range partial.Params {
		ov, ok := jp.Params[k]
		if !ok || !paramValueEqual(ov, v) {
			return false
		}
	}
	return true
}

func paramValueEqual(a, b interface{}) bool {
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}
	return typeOf(a) == typeOf(b) && formatParam(a) == formatParam(b)
}

func formatParam(v interface{}) string {
	switch t := v.(type) {
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case string:
		return t
	}
	return fmt.Sprint(v)
}

// typedParam is the persisted form of a single parameter.
type typedParam struct {
	Type  ParameterType `json:"type"`
	Value string        `json:"value"`
}

func parseTypedParam(p typedParam) (interface{}, error) {
	switch p.Type {
	case ParameterTypeLong:
		return strconv.ParseInt(p.Value, 10, 64)
	case ParameterTypeDouble:
		return strconv.ParseFloat(p.Value, 64)
	case ParameterTypeDate:
		return time.Parse(time.RFC3339Nano, p.Value)
	case ParameterTypeString, "":
		return p.Value, nil
	}
	return nil, fmt.Errorf("unknown parameter type '%s'", p.Type)
}

func (jp JobParameters) typed() map[string]typedParam {
	out := make(map[string]typedParam, len(jp.Params))
	for k, v := range jp.Params {
		out[k] = typedParam{Type: typeOf(v), Value: formatParam(v)}
	}
	return out
}

// MarshalJSON encodes each parameter with its type so values round-trip exactly.
func (jp JobParameters) MarshalJSON() ([]byte, error) {
	return json.Marshal(jp.typed())
}

// UnmarshalJSON decodes the typed form written by MarshalJSON.
func (jp *JobParameters) UnmarshalJSON(data []byte) error {
	var raw map[string]typedParam
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	jp.Params = make(map[string]interface{}, len(raw))
	for k, p := range raw {
		v, err := parseTypedParam(p)
		if err != nil {
			return fmt.Errorf("parameter '%s': %w", k, err)
		}
		jp.Params[k] = v
	}
	return nil
}

// Value implements driver.Valuer.
func (jp JobParameters) Value() (driver.Value, error) {
	data, err := jp.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (jp *JobParameters) Scan(value interface{}) error {
	b, err := scanBytes(value, "JobParameters")
	if err != nil {
		return err
	}
	if len(b) == 0 {
		*jp = NewJobParameters()
		return nil
	}
	if err := jp.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("failed to unmarshal JobParameters JSON: %w", err)
	}
	return nil
}

// Hash returns the identity hash of the parameters: sha256 over the typed JSON encoding.
// encoding/json writes map keys in sorted order, which makes the encoding canonical.
func (jp JobParameters) Hash() (string, error) {
	data, err := jp.MarshalJSON()
	if err != nil {
		return "", exception.NewBatchError("job_parameters", "failed to encode JobParameters for hashing", err, false, false)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

const maskedValue = "********"

var (
	maskedKeysMu sync.RWMutex
	maskedKeys   = map[string]struct{}{"password": {}, "api_key": {}, "secret": {}}
)

// SetMaskedParameterKeys replaces the parameter names whose values String masks.
func SetMaskedParameterKeys(keys []string) {
	m := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		m[strings.ToLower(k)] = struct{}{}
	}
	maskedKeysMu.Lock()
	maskedKeys = m
	maskedKeysMu.Unlock()
}

func isMasked(key string) bool {
	maskedKeysMu.RLock()
	defer maskedKeysMu.RUnlock()
	_, ok := maskedKeys[strings.ToLower(key)]
	return ok
}

// String renders the parameters as "{k=v, ...}" with sensitive values masked.
func (jp JobParameters) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	for i, k := range jp.Keys() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(k)
		sb.WriteString("=")
		if isMasked(k) {
			sb.WriteString(maskedValue)
		} else {
			sb.WriteString(formatParam(jp.Params[k]))
		}
	}
	sb.WriteString("}")
	return sb.String()
}

// NewID generates a new UUID string.
func NewID() string {
	return uuid.New().String()
}
