// Package examfile parses exam import files: a JSON document checked
// against an embedded JSON schema before it becomes a CreateExamRequest.
package examfile

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/stemsi/exstem-attempt/internal/model"
)

//go:embed exam.schema.json
var schemaJSON []byte

const schemaURL = "schema://exstem/exam.json"

// ErrInvalidExam is matched by every validation failure of an exam file.
var ErrInvalidExam = errors.New("invalid exam file")

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		var def any
		if err := json.Unmarshal(schemaJSON, &def); err != nil {
			compileErr = fmt.Errorf("parse schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, def); err != nil {
			compileErr = fmt.Errorf("add resource: %w", err)
			return
		}
		compiled, compileErr = c.Compile(schemaURL)
	})
	return compiled, compileErr
}

// Parse validates raw against the exam schema and decodes it.
// Each question's correct answer must be one of its options.
func Parse(raw []byte) (*model.CreateExamRequest, error) {
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExam, err)
	}

	s, err := schema()
	if err != nil {
		return nil, fmt.Errorf("compile exam schema: %w", err)
	}
	if err := s.Validate(parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExam, err)
	}

	var req model.CreateExamRequest
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExam, err)
	}

	for i, q := range req.Questions {
		if !slices.Contains(q.Options, q.CorrectAnswer) {
			return nil, fmt.Errorf("%w: question %d: correct answer is not among the options", ErrInvalidExam, i+1)
		}
	}
	return &req, nil
}
