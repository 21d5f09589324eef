package errors_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jerrs "github.com/jdholdren/myjournal/internal/errors"
)

func TestEConstructor(t *testing.T) {
	got := jerrs.E(
		"journal url is required",
		jerrs.Detail{Field: "url", Error: "was empty"},
		http.StatusBadRequest,
	)
	want := &jerrs.Error{
		Err: errors.New("journal url is required"),
		Details: []jerrs.Detail{
			{Field: "url", Error: "was empty"},
		},
		Status: http.StatusBadRequest,
	}

	assert.Equal(t, want, got)
}

func TestE_UnwrapsToCause(t *testing.T) {
	cause := errors.New("no feed could be found")
	err := fmt.Errorf("subscribing: %w", jerrs.E(cause, http.StatusBadRequest))

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusBadRequest, jerrs.Status(err))
	assert.Equal(t, http.StatusInternalServerError, jerrs.Status(cause))
}

func TestError_JSON(t *testing.T) {
	byts, err := json.Marshal(jerrs.E("bad email", http.StatusUnauthorized))
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"bad email","details":null,"status":401}`, string(byts))

	var back jerrs.Error
	require.NoError(t, json.Unmarshal(byts, &back))
	assert.Equal(t, http.StatusUnauthorized, back.Status)
	assert.EqualError(t, back.Err, "bad email")
}
