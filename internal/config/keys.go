package config

import (
	"encoding"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/jmagar/gigs-cli/internal/model"
)

// secretKeys are masked by Entries.
var secretKeys = map[string]bool{"token": true, "gotifyToken": true}

// configFields maps Config struct field names to their JSON keys.
func configFields() map[string]string {
	out := make(map[string]string)
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		out[f.Name] = jsonKey(f)
	}
	return out
}

func jsonKey(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" {
		return f.Name
	}
	return name
}

// Entry is one key/value pair for display.
type Entry struct {
	Key   string
	Value string
}

// Entries lists every key with its current value, sorted by key. Secrets
// are masked.
func (c *Config) Entries() []Entry {
	v := reflect.ValueOf(c).Elem()
	t := v.Type()
	out := make([]Entry, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		key := jsonKey(t.Field(i))
		val := fmt.Sprint(v.Field(i).Interface())
		if d, ok := v.Field(i).Interface().(Duration); ok {
			val = d.Duration.String()
		}
		if secretKeys[key] && val != "" {
			val = "********"
		}
		out = append(out, Entry{Key: key, Value: val})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Set assigns value to the field with JSON key key, then validates the
// result. On error cfg is left unchanged.
func (c *Config) Set(key, value string) error {
	next := *c
	v := reflect.ValueOf(&next).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if !strings.EqualFold(jsonKey(t.Field(i)), key) {
			continue
		}
		if err := setField(v.Field(i), value); err != nil {
			return &model.ValidationError{Field: jsonKey(t.Field(i)), Reason: err.Error()}
		}
		normalize(&next)
		if err := next.Validate(); err != nil {
			return err
		}
		*c = next
		return nil
	}
	return &model.ValidationError{Field: key, Reason: "unknown config key"}
}

func setField(field reflect.Value, value string) error {
	if tu, ok := field.Addr().Interface().(encoding.TextUnmarshaler); ok {
		return tu.UnmarshalText([]byte(value))
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%q is not an integer", value)
		}
		field.SetInt(int64(n))
	case reflect.Bool:
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%q is not a boolean", value)
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("unsupported field type %s", field.Kind())
	}
	return nil
}
