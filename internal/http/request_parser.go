// Package http provides the JSON API server and its handlers.
//
// This file implements utilities for reading request bodies. JSON,
// url-encoded and multipart bodies are all accepted and exposed through the
// same accessors.
package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"fintrack/internal/core"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling file parts to disk.
const multipartMemory = 1 << 20

// RequestBodyParser reads a request body once and serves field lookups from it.
type RequestBodyParser struct {
	req         *http.Request
	contentType string
	jsonData    map[string]any
	formData    url.Values
	files       map[string][]*multipart.FileHeader
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	return &RequestBodyParser{
		req:         r,
		contentType: r.Header.Get("Content-Type"),
	}
}

// Parse decodes the body according to its content type. Malformed bodies are
// reported as validation errors; an oversized body keeps its
// *http.MaxBytesError so callers can answer 413.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true
	p.err = p.parse()
	return p.err
}

func (p *RequestBodyParser) parse() error {
	mediaType, _, _ := mime.ParseMediaType(p.contentType)

	if mediaType == "multipart/form-data" {
		if err := p.req.ParseMultipartForm(multipartMemory); err != nil {
			return malformed(err)
		}
		p.formData = url.Values(p.req.MultipartForm.Value)
		p.files = p.req.MultipartForm.File
		return nil
	}

	body, err := io.ReadAll(p.req.Body)
	if err != nil {
		return malformed(err)
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if mediaType == "application/json" || body[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		p.jsonData = make(map[string]any)
		if err := dec.Decode(&p.jsonData); err != nil {
			return malformed(err)
		}
		return nil
	}

	p.formData, err = url.ParseQuery(string(body))
	if err != nil {
		return malformed(err)
	}
	return nil
}

func malformed(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return fmt.Errorf("%w: malformed request body", core.ErrValidation)
}

// Has reports whether the body carried key at all, even with an empty value.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	if p.formData != nil {
		_, ok := p.formData[key]
		return ok
	}
	return false
}

// Get returns a sanitized, trimmed string value from the parsed data.
func (p *RequestBodyParser) Get(key string) string {
	return sanitizeInput(p.raw(key))
}

// Secret returns a value untouched. Passwords and keys must not be trimmed.
func (p *RequestBodyParser) Secret(key string) string {
	return p.raw(key)
}

// Optional returns nil when key is absent, which partial updates treat as keep.
func (p *RequestBodyParser) Optional(key string) *string {
	if !p.Has(key) {
		return nil
	}
	v := p.Get(key)
	return &v
}

// Bool reads an optional boolean. JSON booleans and the usual form spellings
// are accepted.
func (p *RequestBodyParser) Bool(key string) (*bool, error) {
	if !p.Has(key) {
		return nil, nil
	}
	if p.jsonData != nil {
		if b, ok := p.jsonData[key].(bool); ok {
			return &b, nil
		}
	}
	switch strings.ToLower(p.Get(key)) {
	case "true", "1", "on", "yes":
		b := true
		return &b, nil
	case "false", "0", "off", "no", "":
		b := false
		return &b, nil
	}
	return nil, fmt.Errorf("%w: %s must be a boolean", core.ErrValidation, key)
}

// File returns the first file sent under key, or nil when there is none.
// The caller closes the returned file.
func (p *RequestBodyParser) File(key string) (multipart.File, *multipart.FileHeader, error) {
	headers := p.files[key]
	if len(headers) == 0 || headers[0].Filename == "" {
		return nil, nil, nil
	}
	f, err := headers[0].Open()
	if err != nil {
		return nil, nil, fmt.Errorf("open uploaded file: %w", err)
	}
	return f, headers[0], nil
}

func (p *RequestBodyParser) raw(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return stringValue(val)
		}
		return ""
	}
	if p.formData != nil {
		return p.formData.Get(key)
	}
	return ""
}

// ContentType returns the Content-Type header value.
func (p *RequestBodyParser) ContentType() string {
	return p.contentType
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts a decoded JSON value to its string form. Numbers keep
// their exact textual representation.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
