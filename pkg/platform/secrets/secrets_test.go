package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "consentry/pkg/domain-errors"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("swordfish")
	require.NoError(t, err)
	assert.NotEqual(t, "swordfish", hash)

	assert.NoError(t, Verify("swordfish", hash))

	err = Verify("wrong", hash)
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeUnauthorized, dErrors.CodeOf(err))
}

func TestHashRejectsEmptySecret(t *testing.T) {
	_, err := Hash("")
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeBadRequest, dErrors.CodeOf(err))
}
