package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `validate:"required"`
	Port  int    `validate:"gt=0"`
	Inner struct {
		Mode string `validate:"oneof=a b"`
	}
}

func TestValidateReportsNamespacedFields(t *testing.T) {
	var s sample
	s.Inner.Mode = "c"

	fields := Validate(s)
	require.Len(t, fields, 3)
	assert.Equal(t, "required", fields["sample.Name"])
	assert.Equal(t, "gt", fields["sample.Port"])
	assert.Equal(t, "oneof", fields["sample.Inner.Mode"])
}

func TestStruct(t *testing.T) {
	s := sample{Name: "x", Port: 1}
	s.Inner.Mode = "a"
	assert.NoError(t, Struct(s))

	s.Port = 0
	err := Struct(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sample.Port")
}
