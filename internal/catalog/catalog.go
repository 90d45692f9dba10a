// Package catalog loads the activity definitions the registry is seeded with.
package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"

	"github.com/noah-isme/gema-activities-api/internal/registry"
)

//go:embed activities.json
var defaultCatalog []byte

//go:embed catalog.schema.json
var catalogSchema string

// Entry describes one activity in a catalog document.
type Entry struct {
	Name            string   `json:"name" validate:"required"`
	Description     string   `json:"description"`
	Schedule        string   `json:"schedule" validate:"required"`
	MaxParticipants int      `json:"max_participants" validate:"gt=0"`
	Participants    []string `json:"participants" validate:"omitempty,unique,dive,required,email"`
}

// Document is the top-level catalog shape.
type Document struct {
	Activities []Entry `json:"activities" validate:"required,min=1,dive"`
}

// Loader reads and validates catalog documents.
type Loader struct {
	schema    *jsonschema.Schema
	validator *validator.Validate
	policy    *bluemonday.Policy
}

// NewLoader compiles the catalog schema.
func NewLoader(validate *validator.Validate) (*Loader, error) {
	schema, err := jsonschema.CompileString("catalog.schema.json", catalogSchema)
	if err != nil {
		return nil, fmt.Errorf("compile catalog schema: %w", err)
	}
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}

	return &Loader{
		schema:    schema,
		validator: validate,
		policy:    bluemonday.StrictPolicy(),
	}, nil
}

// Load reads the catalog at path, or the embedded default catalog when path is empty.
func (l *Loader) Load(path string) (Document, error) {
	v := viper.New()

	if strings.TrimSpace(path) == "" {
		v.SetConfigType("json")
		if err := v.ReadConfig(bytes.NewReader(defaultCatalog)); err != nil {
			return Document{}, fmt.Errorf("read embedded catalog: %w", err)
		}
	} else {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Document{}, fmt.Errorf("read catalog %s: %w", path, err)
		}
	}

	// YAML overrides go through JSON too, so the schema sees plain JSON values
	raw, err := json.Marshal(v.AllSettings())
	if err != nil {
		return Document{}, fmt.Errorf("encode catalog: %w", err)
	}

	return l.Parse(raw)
}

// Parse validates a JSON catalog document.
func (l *Loader) Parse(raw []byte) (Document, error) {
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return Document{}, fmt.Errorf("decode catalog: %w", err)
	}
	if err := l.schema.Validate(generic); err != nil {
		return Document{}, fmt.Errorf("catalog does not match schema: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("decode catalog: %w", err)
	}
	if err := l.validator.Struct(doc); err != nil {
		return Document{}, fmt.Errorf("invalid catalog: %w", err)
	}

	for i := range doc.Activities {
		entry := &doc.Activities[i]
		entry.Name = strings.TrimSpace(entry.Name)
		entry.Description = strings.TrimSpace(l.policy.Sanitize(entry.Description))
		entry.Schedule = strings.TrimSpace(l.policy.Sanitize(entry.Schedule))
	}

	return doc, nil
}

// Build constructs a registry from the document's activities.
func Build(doc Document) (*registry.Registry, error) {
	activities := make([]*registry.Activity, 0, len(doc.Activities))
	for _, entry := range doc.Activities {
		activity, err := registry.NewActivity(entry.Name, entry.Description, entry.Schedule, entry.MaxParticipants, entry.Participants...)
		if err != nil {
			return nil, err
		}
		activities = append(activities, activity)
	}

	return registry.New(activities...)
}
