package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default("acme")
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "acme", cfg.Organization.ID)
	assert.Equal(t, []string{"Company", "Partner", "Consignment"}, cfg.Inventory.Owners)
	assert.Contains(t, cfg.RBAC.Roles["member"].Permissions, "stone.export")
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestFromYAMLRejectsBadConfig(t *testing.T) {
	cases := map[string]string{
		"missing id":      "inventory:\n  owners: [A]\n",
		"no owners":       "organization:\n  id: x\n",
		"duplicate owner": "organization:\n  id: x\ninventory:\n  owners: [A, A]\n",
		"bad timezone":    "organization:\n  id: x\ninventory:\n  owners: [A]\n  timezone: Mars/Olympus\n",
		"bad format":      "organization:\n  id: x\ninventory:\n  owners: [A]\nexport:\n  default_format: pdf\n",
		"no owner role":   "organization:\n  id: x\ninventory:\n  owners: [A]\nrbac:\n  roles:\n    member:\n      permissions: [stone.read]\n",
		"webhook url":     "organization:\n  id: x\ninventory:\n  owners: [A]\nwebhooks:\n  - secret: s\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromYAML([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestFromYAMLTimezone(t *testing.T) {
	cfg, err := FromYAML([]byte("organization:\n  id: x\ninventory:\n  owners: [A, B, C]\n  timezone: Asia/Bangkok\n"))
	require.NoError(t, err)
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Bangkok", loc.String())
}

func TestAllows(t *testing.T) {
	assert.True(t, Allows(nil, "anything"))
	assert.True(t, Allows([]string{"USD"}, ""))
	assert.True(t, Allows([]string{"USD"}, "USD"))
	assert.False(t, Allows([]string{"USD"}, "usd"))
}
