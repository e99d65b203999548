package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dentalclinic/m/domain"
)

type sample struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"omitempty,email"`
	Pass  string `json:"password" validate:"min=6"`
}

func TestStruct(t *testing.T) {
	assert.NoError(t, Struct(sample{Name: "Ana", Pass: "secreto"}))

	err := Struct(sample{Email: "nope", Pass: "123"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, "name is required; email must be a valid email; password must be at least 6 characters", err.Error())
}
