package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/user/courier"
)

func TestExitFor(t *testing.T) {
	assert.NoError(t, exitFor(&courier.Result{Kind: courier.HardSuccess}))

	var ee *exitError
	require.True(t, errors.As(exitFor(&courier.Result{Kind: courier.SoftSuccess}), &ee))
	assert.Equal(t, exitSoft, ee.code)
	require.True(t, errors.As(exitFor(&courier.Result{Kind: courier.TotalFailure}), &ee))
	assert.Equal(t, exitTotal, ee.code)
}

func TestWriteResult(t *testing.T) {
	var buf bytes.Buffer
	res := &courier.Result{
		SubmissionID: "id-1",
		Kind:         courier.TotalFailure,
		Attempts: []courier.Attempt{
			{Label: "direct", Outcome: courier.Rejected(500, "disk full")},
		},
		Err: errors.New("all 1 channels failed"),
	}
	require.NoError(t, writeResult(&buf, res))

	out := buf.Bytes()
	assert.Equal(t, "total_failure", gjson.GetBytes(out, "kind").String())
	assert.Equal(t, "server_rejected", gjson.GetBytes(out, "attempts.0.outcome.kind").String())
	assert.Equal(t, int64(500), gjson.GetBytes(out, "attempts.0.outcome.status_code").Int())
	assert.Equal(t, "all 1 channels failed", gjson.GetBytes(out, "error").String())
	assert.Equal(t, "all 1 channels failed", gjson.GetBytes(out, "message").String())
}

func TestProgressPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := progressPrinter(&buf)
	p(0)
	p(40)
	assert.Equal(t, "\rUploading...   0%\rUploading...  40%", buf.String())
}
