package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/logger"
)

// ExecutionContext is a key-value store for sharing state within a step or across the steps
// of a job execution. Values must be JSON-serializable; after a round trip through a
// persistent repository numbers come back as float64.
type ExecutionContext map[string]interface{}

// NewExecutionContext creates an empty ExecutionContext.
func NewExecutionContext() ExecutionContext {
	return make(ExecutionContext)
}

// Value implements driver.Valuer by encoding the context as JSON.
func (ec ExecutionContext) Value() (driver.Value, error) {
	if ec == nil {
		return "{}", nil
	}
	data, err := json.Marshal(ec)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner for JSON encoded contexts.
func (ec *ExecutionContext) Scan(value interface{}) error {
	b, err := scanBytes(value, "ExecutionContext")
	if err != nil {
		return err
	}
	*ec = make(ExecutionContext)
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, ec); err != nil {
		return fmt.Errorf("failed to unmarshal ExecutionContext JSON: %w", err)
	}
	return nil
}

func scanBytes(value interface{}, typeName string) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	return nil, fmt.Errorf("unsupported Scan type for %s: %T", typeName, value)
}

// Put stores value under key.
func (ec ExecutionContext) Put(key string, value interface{}) {
	ec[key] = value
}

// Get returns the value stored under key.
func (ec ExecutionContext) Get(key string) (interface{}, bool) {
	v, ok := ec[key]
	return v, ok
}

// ContainsKey reports whether key is present at the top level.
func (ec ExecutionContext) ContainsKey(key string) bool {
	_, ok := ec[key]
	return ok
}

// Remove deletes key.
func (ec ExecutionContext) Remove(key string) {
	delete(ec, key)
}

// Keys returns the top-level keys in sorted order.
func (ec ExecutionContext) Keys() []string {
	keys := make([]string, 0, len(ec))
	for k := range ec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetString returns the value under key if it is a string.
func (ec ExecutionContext) GetString(key string) (string, bool) {
	s, ok := ec[key].(string)
	return s, ok
}

// GetInt returns the value under key as an int. Any integral number type and float64
// (the JSON decoding of numbers) are accepted.
func (ec ExecutionContext) GetInt(key string) (int, bool) {
	n, ok := ec.GetInt64(key)
	return int(n), ok
}

// GetInt64 returns the value under key as an int64.
func (ec ExecutionContext) GetInt64(key string) (int64, bool) {
	v, ok := ec[key]
	if !ok {
		return 0, false
	}
	return toInt64(v)
}

// GetBool returns the value under key if it is a bool.
func (ec ExecutionContext) GetBool(key string) (bool, bool) {
	b, ok := ec[key].(bool)
	return b, ok
}

// GetFloat64 returns the value under key as a float64.
func (ec ExecutionContext) GetFloat64(key string) (float64, bool) {
	switch v := ec[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	}
	if n, ok := toInt64(ec[key]); ok {
		return float64(n), true
	}
	return 0, false
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		return int64(n), true
	case float32:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

// Copy returns a deep copy. Nested maps and slices are copied so the result can be
// mutated without affecting the original.
func (ec ExecutionContext) Copy() ExecutionContext {
	if ec == nil {
		return NewExecutionContext()
	}
	out := make(ExecutionContext, len(ec))
	for k, v := range ec {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case ExecutionContext:
		return t.Copy()
	case map[string]interface{}:
		return map[string]interface{}(ExecutionContext(t).Copy())
	case []interface{}:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = deepCopyValue(t[i])
		}
		return out
	case []string:
		return append([]string(nil), t...)
	}
	return v
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case ExecutionContext:
		return m, true
	case map[string]interface{}:
		return m, true
	}
	return nil, false
}

// GetNested resolves a dot-separated key such as "reader.position". A top-level key that
// itself contains dots takes precedence.
func (ec ExecutionContext) GetNested(key string) (interface{}, bool) {
	if v, ok := ec[key]; ok {
		return v, true
	}
	var cur interface{} = ec
	for _, part := range strings.Split(key, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// PutNested stores value under a dot-separated key, creating intermediate maps.
// A non-map value on the path is replaced.
func (ec ExecutionContext) PutNested(key string, value interface{}) {
	parts := strings.Split(key, ".")
	cur := map[string]interface{}(ec)
	for i, part := range parts[:len(parts)-1] {
		next, ok := asMap(cur[part])
		if !ok {
			if _, exists := cur[part]; exists {
				logger.Warnf("ExecutionContext.PutNested: overwriting non-map value at '%s'.", strings.Join(parts[:i+1], "."))
			}
			next = make(map[string]interface{})
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

// ExecutionContextPromotion lists step-context keys copied into the job context when a
// step completes successfully.
type ExecutionContextPromotion struct {
	// Keys are copied under the same name.
	Keys []string
	// JobLevelKeys maps a step key to a different job-level key.
	JobLevelKeys map[string]string
}

// NewExecutionContextPromotion promotes keys under their own names.
func NewExecutionContextPromotion(keys ...string) *ExecutionContextPromotion {
	return &ExecutionContextPromotion{Keys: keys, JobLevelKeys: map[string]string{}}
}

// Apply copies the configured keys from step into job and returns the job keys written.
// Missing step keys are ignored.
func (p *ExecutionContextPromotion) Apply(step, job ExecutionContext) []string {
	if p == nil {
		return nil
	}
	var promoted []string
	for _, k := range p.Keys {
		if v, ok := step.GetNested(k); ok {
			job.PutNested(k, deepCopyValue(v))
			promoted = append(promoted, k)
		}
	}
	for stepKey, jobKey := range p.JobLevelKeys {
		if v, ok := step.GetNested(stepKey); ok {
			job.PutNested(jobKey, deepCopyValue(v))
			promoted = append(promoted, jobKey)
		}
	}
	sort.Strings(promoted)
	return promoted
}
