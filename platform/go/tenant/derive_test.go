package tenant

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToSnake(t *testing.T) {
	require.Equal(t, "acme_corp", ToSnake("acme-corp"))
	require.Equal(t, "acme_corp", ToSnake("Acme-Corp"))
	require.Equal(t, "acme", ToSnake("acme"))
}

func TestBuildSchemaName(t *testing.T) {
	require.Equal(t, "tenant_acme_corp", BuildSchemaName("acme_corp"))
}

func TestValidSlug(t *testing.T) {
	require.True(t, ValidSlug("acme"))
	require.True(t, ValidSlug("acme-corp"))
	require.True(t, ValidSlug("a1"))

	require.False(t, ValidSlug(""))
	require.False(t, ValidSlug("-acme"))
	require.False(t, ValidSlug("acme-"))
	require.False(t, ValidSlug("Acme"))
	require.False(t, ValidSlug("acme corp"))
	require.False(t, ValidSlug("tenant_acme"))
}
