// Package jsonutil pulls JSON documents out of free-form model output.
package jsonutil

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoObject is returned when the text holds no JSON object.
var ErrNoObject = errors.New("no json object found")

var fenceRe = regexp.MustCompile("(?s)```(?:json|JSON|html|HTML)?\\s*\\n?(.*?)```")

// StripFences returns the body of the first fenced code block, or the trimmed text.
func StripFences(text string) string {
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

// ExtractObject returns the outermost {...} span of text after removing fences.
func ExtractObject(text string) (string, error) {
	body := StripFences(text)
	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end <= start {
		return "", ErrNoObject
	}
	return body[start : end+1], nil
}

// Decode extracts the object in text and unmarshals it into v.
func Decode(text string, v any) error {
	obj, err := ExtractObject(text)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(obj), v)
}
