package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniportal/internship-portal/internal/apperr"
	"github.com/uniportal/internship-portal/internal/matching"
	"github.com/uniportal/internship-portal/internal/profile"
)

func TestDecodeRunReply(t *testing.T) {
	id := uuid.New()
	data, err := json.Marshal(matching.RunReply{Result: &matching.RunResult{RunID: id, Created: 2}})
	require.NoError(t, err)

	result, err := decodeRunReply(data)
	require.NoError(t, err)
	assert.Equal(t, id, result.RunID)
	assert.Equal(t, 2, result.Created)
}

func TestDecodeRunReply_Errors(t *testing.T) {
	_, err := decodeRunReply([]byte(`{"error":"matching: run already in progress","code":"conflict"}`))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeConflict))

	_, err = decodeRunReply([]byte(`{"error":"boom"}`))
	assert.True(t, apperr.Is(err, apperr.CodeInternal))

	_, err = decodeRunReply([]byte(`{}`))
	assert.Error(t, err)

	_, err = decodeRunReply([]byte(`not json`))
	assert.Error(t, err)
}

func TestPrintInternships(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printInternships(&buf, nil))
	assert.Equal(t, "no matching internships\n", buf.String())

	buf.Reset()
	err := printInternships(&buf, []matching.ScoredInternship{
		{Internship: profile.Internship{ID: 7, Title: "Backend intern"}, Score: 71.428},
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Backend intern")
	assert.Contains(t, buf.String(), "71.43")
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "portalctl version: unknown\n", buf.String())
}

func TestMigrateDown_RejectsZeroSteps(t *testing.T) {
	rootCmd.SetArgs([]string{"migrate", "down", "--steps", "0", "--yes"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	assert.Error(t, rootCmd.Execute())
}
