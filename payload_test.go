package courier

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBlob struct {
	data []byte
}

func (b *stubBlob) Name() string        { return "stub.txt" }
func (b *stubBlob) Size() int64         { return int64(len(b.data)) }
func (b *stubBlob) ContentType() string { return "text/plain" }
func (b *stubBlob) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

func TestBuild(t *testing.T) {
	fields := Fields{Username: "alice", Email: "not-an-email", PhoneCountryCode: "", PhoneNumber: "x"}
	p, err := Build(fields, &stubBlob{data: []byte("hi")})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID())
	assert.Equal(t, fields, p.Fields(), "fields are passed through untouched")
	assert.Equal(t, "stub.txt", p.File().Name())
	assert.False(t, p.CreatedAt().IsZero())
	assert.NoError(t, p.Validate())

	other, err := Build(fields, &stubBlob{})
	require.NoError(t, err)
	assert.NotEqual(t, p.ID(), other.ID())
}

func TestBuild_MissingFile(t *testing.T) {
	var typedNil *stubBlob
	for _, b := range []Blob{nil, typedNil} {
		p, err := Build(Fields{Username: "alice"}, b)
		assert.Nil(t, p)

		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "missing file", verr.Reason)
		assert.Equal(t, "validation failed: missing file", err.Error())
	}

	var nilPayload *Payload
	assert.Error(t, nilPayload.Validate())
	assert.Error(t, (&Payload{}).Validate())
}

func TestProgressFromContext(t *testing.T) {
	// no reporter attached
	ProgressFromContext(context.Background())(50)

	var got []int
	ctx := WithProgress(context.Background(), func(p int) { got = append(got, p) })
	ProgressFromContext(ctx)(10)
	ProgressFromContext(ctx)(20)
	assert.Equal(t, []int{10, 20}, got)
}
