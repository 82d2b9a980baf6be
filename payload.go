package courier

import (
	"io"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// Fields are the textual form values. They are passed through opaquely.
type Fields struct {
	Username         string `json:"username"`
	Email            string `json:"email"`
	PhoneCountryCode string `json:"phoneCode"`
	PhoneNumber      string `json:"phone"`
}

// Blob is a reference to the file being submitted.
type Blob interface {
	Name() string
	Size() int64
	ContentType() string
	// Open returns a fresh reader over the full content. It may be called once per attempt.
	Open() (io.ReadCloser, error)
}

// ValidationError is returned when a payload cannot be built.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// Payload is the immutable bundle handed to every channel of a run.
type Payload struct {
	id        string
	fields    Fields
	file      Blob
	createdAt time.Time
}

// Build validates the inputs and returns a new payload.
// Only the presence of file is checked.
func Build(fields Fields, file Blob) (*Payload, error) {
	if isNilBlob(file) {
		return nil, &ValidationError{Reason: "missing file"}
	}
	return &Payload{
		id:        uuid.New().String(),
		fields:    fields,
		file:      file,
		createdAt: time.Now(),
	}, nil
}

// Validate reports whether p can be handed to channels.
func (p *Payload) Validate() error {
	if p == nil || isNilBlob(p.file) {
		return &ValidationError{Reason: "missing file"}
	}
	return nil
}

func (p *Payload) ID() string           { return p.id }
func (p *Payload) Fields() Fields       { return p.fields }
func (p *Payload) File() Blob           { return p.file }
func (p *Payload) CreatedAt() time.Time { return p.createdAt }

// isNilBlob also catches typed nil pointers stored in the interface.
func isNilBlob(b Blob) bool {
	if b == nil {
		return true
	}
	v := reflect.ValueOf(b)
	return v.Kind() == reflect.Ptr && v.IsNil()
}
