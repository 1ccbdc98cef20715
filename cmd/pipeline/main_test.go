package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/navigo-fleet/pipeline/pkg/vehicle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadVehicleContactsMissingPath(t *testing.T) {
	assert.Empty(t, loadVehicleContacts(""))
}

func TestLoadVehicleContactsUnreadablePath(t *testing.T) {
	assert.Empty(t, loadVehicleContacts(filepath.Join(t.TempDir(), "does-not-exist.json")))
}

func TestLoadVehicleContactsParsesRoster(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.json")
	body := `{"VIN123": {"phone": "+14155550134", "name": "Jordan Lee"}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	contacts := loadVehicleContacts(path)
	assert.Equal(t, vehicle.Contact{Phone: "+14155550134", Name: "Jordan Lee"}, contacts["VIN123"])
}
