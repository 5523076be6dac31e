package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPosition_Validate(t *testing.T) {
	tests := []struct {
		name    string
		pos     Position
		wantErr bool
	}{
		{"origin", Position{0, 0}, false},
		{"seed", Position{28.625485, 79.821091}, false},
		{"north pole", Position{90, 180}, false},
		{"south pole", Position{-90, -180}, false},
		{"lat too high", Position{90.0001, 0}, true},
		{"lat too low", Position{-91, 0}, true},
		{"lng too high", Position{0, 180.5}, true},
		{"lng too low", Position{0, -181}, true},
		{"nan", Position{math.NaN(), 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pos.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidArgument)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPosition_String(t *testing.T) {
	assert.Equal(t, "28.625182,79.81464", Position{28.625182, 79.81464}.String())
	assert.Equal(t, "-1.5,0", Position{-1.5, 0}.String())
}

func TestLabelFor(t *testing.T) {
	assert.Equal(t, "28.625043,  79.810135", LabelFor(Position{28.625043, 79.810135}))
}

func TestLocationError(t *testing.T) {
	err := error(NewLocationError("timeout"))

	var locErr *LocationError
	assert.True(t, errors.As(err, &locErr))
	assert.Equal(t, "timeout", locErr.Reason)
	assert.Equal(t, "location error: timeout", err.Error())
}

func TestLocationFailureReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrLocationUnavailable, "unavailable"},
		{fmt.Errorf("locate: %w", ErrLocationUnavailable), "unavailable"},
		{ErrSessionClosed, "closed"},
		{context.Canceled, "cancelled"},
		{context.DeadlineExceeded, "cancelled"},
		{NewLocationError("no satellites"), "sensor"},
		{errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		t.Run(tt.want+"/"+tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, LocationFailureReason(tt.err))
		})
	}
}
