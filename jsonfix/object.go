package jsonfix

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

var objectSchema = jsonschema.MustCompileString("stage-output.json", `{"type": "object"}`)

// Object parses s and requires its top-level value to be a JSON object.
// This is the only structural requirement placed on stage output; every
// field below the top level is read defensively.
func Object(s string) (gjson.Result, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return gjson.Result{}, fmt.Errorf("parse stage output: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return gjson.Result{}, fmt.Errorf("parse stage output: trailing data after top-level value")
	}
	if err := objectSchema.Validate(doc); err != nil {
		return gjson.Result{}, fmt.Errorf("stage output is not an object: %w", err)
	}
	return gjson.Parse(s), nil
}

// String returns the string at path, or "" when it is missing or not a string.
func String(r gjson.Result, path string) string {
	v := r.Get(path)
	if v.Type != gjson.String {
		return ""
	}
	return v.Str
}

// Float returns the number at path, or 0 when it is missing or not a number.
func Float(r gjson.Result, path string) float64 {
	v := r.Get(path)
	if v.Type != gjson.Number {
		return 0
	}
	return v.Num
}

// Int returns the number at path truncated to an int, or 0.
func Int(r gjson.Result, path string) int {
	v := r.Get(path)
	if v.Type != gjson.Number {
		return 0
	}
	return int(v.Int())
}

// Strings returns the non-blank string elements of the array at path.
func Strings(r gjson.Result, path string) []string {
	out := []string{}
	for _, item := range Array(r, path) {
		if item.Type == gjson.String && strings.TrimSpace(item.Str) != "" {
			out = append(out, item.Str)
		}
	}
	return out
}

// Joined reads a value that may be a string or an array of strings and
// returns it as one string, joining array elements with sep.
func Joined(r gjson.Result, path, sep string) string {
	v := r.Get(path)
	if v.IsArray() {
		return strings.Join(Strings(r, path), sep)
	}
	return String(r, path)
}

// Array returns the elements of the array at path, or nil.
func Array(r gjson.Result, path string) []gjson.Result {
	v := r.Get(path)
	if !v.IsArray() {
		return nil
	}
	return v.Array()
}

// Map returns the string members of the object at path.
func Map(r gjson.Result, path string) map[string]string {
	out := map[string]string{}
	v := r.Get(path)
	if !v.IsObject() {
		return out
	}
	v.ForEach(func(key, value gjson.Result) bool {
		if value.Type == gjson.String {
			out[key.String()] = value.Str
		}
		return true
	})
	return out
}
