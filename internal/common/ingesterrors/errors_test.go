package ingesterrors

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrInvalidArgument(t *testing.T) {
	err := &ErrInvalidArgument{Name: "variant", Value: "sms"}
	assert.Equal(t, `value "sms" is invalid for field "variant"`, err.Error())

	err.Message = "expected batch or campaign"
	assert.Equal(t, `value "sms" is invalid for field "variant"; expected batch or campaign`, err.Error())

	assert.True(t, IsInvalidArgument(errors.WithMessage(err, "lookup")))
	assert.False(t, IsInvalidArgument(errors.New("boom")))
}
