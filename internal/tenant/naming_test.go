package tenant

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCollectionName(t *testing.T) {
	tests := []struct {
		name     string
		orgName  string
		expected string
	}{
		{name: "trailing space", orgName: "Acme Corp ", expected: "org_acme_corp"},
		{name: "leading and trailing whitespace", orgName: "\t Acme Corp\n", expected: "org_acme_corp"},
		{name: "already normalized", orgName: "acme_corp", expected: "org_acme_corp"},
		{name: "multiple inner spaces", orgName: "Acme  Corp", expected: "org_acme__corp"},
		{name: "mixed case", orgName: "ACME inc", expected: "org_acme_inc"},
		{name: "empty", orgName: "", expected: "org_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, CollectionName(tt.orgName))
		})
	}
}

func TestNormalize_idempotent(t *testing.T) {
	for _, name := range []string{"Acme Corp ", "acme_corp", "  MiXeD Case Name  ", "x"} {
		once := Normalize(name)
		require.Equal(t, once, Normalize(once), "name %q", name)
		require.Equal(t, CollectionName(name), CollectionName(once), "name %q", name)
	}
}

func TestCollectionName_variantsCollide(t *testing.T) {
	require.Equal(t, CollectionName("Acme Corp"), CollectionName(" acme corp "))
	require.NotEqual(t, CollectionName("Acme Corp"), CollectionName("Acme Inc"))
}
