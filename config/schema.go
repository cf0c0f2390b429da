// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package config

import (
	"github.com/juju/errors"
	"github.com/juju/schema"
	goyaml "gopkg.in/yaml.v2"
)

// DefaultInterpreters is the interpreter search order used when the
// configuration names none.
var DefaultInterpreters = []string{"python3", "python"}

var configFields = schema.Fields{
	"downloads-dir":          schema.String(),
	"manifest":               schema.String(),
	"installer":              schema.String(),
	"ensure-system-packages": schema.Bool(),
	"system-packages":        schema.List(schema.String()),
	"interpreters":           schema.List(schema.String()),
	"worker":                 schema.String(),
	"worker-entry":           schema.String(),
	"worker-env":             schema.StringMap(schema.String()),
	"require-env":            schema.List(schema.String()),
	"log-dir":                schema.String(),
	"lock-timeout":           schema.String(),
}

var configDefaults = schema.Defaults{
	"downloads-dir":          "downloads",
	"manifest":               "requirements.txt",
	"installer":              "",
	"ensure-system-packages": false,
	"system-packages":        schema.Omit,
	"interpreters":           schema.Omit,
	"worker":                 "",
	"worker-entry":           "main.py",
	"worker-env":             schema.Omit,
	"require-env":            schema.Omit,
	"log-dir":                "",
	"lock-timeout":           "1m",
}

var configChecker = schema.StrictFieldMap(configFields, configDefaults)

func unmarshalBody(body []byte) (map[string]interface{}, error) {
	var raw map[string]interface{}
	if err := goyaml.Unmarshal(body, &raw); err != nil {
		return nil, errors.Trace(err)
	}
	return raw, nil
}

// attributes is the coerced form of the configuration body.
type attributes map[string]interface{}

func coerce(raw map[string]interface{}) (attributes, error) {
	if raw == nil {
		raw = map[string]interface{}{}
	}
	coerced, err := configChecker.Coerce(raw, nil)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return attributes(coerced.(map[string]interface{})), nil
}

func (a attributes) string(key string) string {
	value, ok := a[key]
	if !ok || value == nil {
		return ""
	}
	return value.(string)
}

func (a attributes) bool(key string) bool {
	value, ok := a[key]
	if !ok || value == nil {
		return false
	}
	return value.(bool)
}

func (a attributes) stringList(key string) []string {
	value, ok := a[key]
	if !ok || value == nil {
		return nil
	}
	items := value.([]interface{})
	list := make([]string, len(items))
	for i, item := range items {
		list[i] = item.(string)
	}
	return list
}

func (a attributes) stringMap(key string) map[string]string {
	value, ok := a[key]
	if !ok || value == nil {
		return nil
	}
	items := value.(map[string]interface{})
	m := make(map[string]string, len(items))
	for k, v := range items {
		m[k] = v.(string)
	}
	return m
}
