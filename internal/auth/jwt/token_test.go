package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	m := NewManager(TokenConfig{Secret: []byte("secret")})

	userID := uuid.New()
	token, err := m.Generate(userID, "Asha")
	require.NoError(t, err)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "Asha", claims.DisplayName)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := NewManager(TokenConfig{Secret: []byte("one")}).Generate(uuid.New(), "")
	require.NoError(t, err)

	_, err = NewManager(TokenConfig{Secret: []byte("two")}).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	m := NewManager(TokenConfig{Secret: []byte("secret"), TTL: -time.Minute})

	token, err := m.Generate(uuid.New(), "")
	require.NoError(t, err)

	_, err = m.Validate(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateRejectsNilUserID(t *testing.T) {
	m := NewManager(TokenConfig{Secret: []byte("secret")})

	token, err := m.Generate(uuid.Nil, "")
	require.NoError(t, err)

	_, err = m.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
