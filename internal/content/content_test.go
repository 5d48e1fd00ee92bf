package content

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/AnshRaj112/municipal-portal-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedCatalogue(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Len(t, c.Departments, 5)
	assert.Len(t, c.ZonalOffices, 5)
	assert.Len(t, c.Services, 6)

	water, err := c.Department("water")
	require.NoError(t, err)
	assert.Equal(t, "Water Supply Department", water.Name)
	assert.Equal(t, "+91 123 456 7890", water.Contact.Phone)
	assert.Equal(t, "water@municipalcorp.gov.in", water.Contact.Email)
	assert.Equal(t, "2nd Floor, Municipal Corporation Building", water.Contact.Office)

	roads, err := c.Department("roads")
	require.NoError(t, err)
	assert.Equal(t, "Chief Engineer (Roads)", roads.Officials[0].Designation)

	north, err := c.ZonalOffice("north")
	require.NoError(t, err)
	assert.Equal(t, "North Zone Office", north.Name)
	assert.Equal(t, "123 North Avenue, Northern District", north.Address)
	assert.Equal(t, "9:00 AM to 5:00 PM (Mon-Sat)", north.Timings)
	assert.Equal(t, "Mr. Ajay Malik", north.Officials[0].Name)
	assert.Equal(t, "Ms. Deepika Rao", north.Officials[1].Name)
	assert.Len(t, north.Areas, 5)
}

func TestUnknownIDs(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	_, err = c.Department("parks")
	assert.ErrorIs(t, err, ErrDepartmentNotFound)
	assert.Equal(t, "Department details not found", err.Error())

	_, err = c.ZonalOffice("northeast")
	assert.ErrorIs(t, err, ErrZoneNotFound)
	assert.Equal(t, "Zone information not found", err.Error())
}

func TestServicesHaveApplicationPaths(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	for _, s := range c.Services {
		assert.Equal(t, "/api/services/"+s.ID+"/applications", s.ApplicationPath, s.ID)
	}
}

func TestCategoriesFollowModelOrder(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	cats := c.Categories()
	require.Len(t, cats, len(models.ComplaintCategories))
	assert.Equal(t, models.CategoryWater, cats[0].ID)
	assert.Equal(t, "Water Supply", cats[0].Name)
}

func TestLoadOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
departments:
  - id: library
    name: Public Library
zonal_offices: []
services:
  - id: dog-license
    title: Dog License
`), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	d, err := c.Department("library")
	require.NoError(t, err)
	assert.Equal(t, "Public Library", d.Name)
	assert.Empty(t, c.Services[0].ApplicationPath)
}

func TestParseRejectsBadCatalogues(t *testing.T) {
	_, err := Parse([]byte("departments:\n  - id: a\n    name: A\n  - id: a\n    name: B\n"))
	assert.ErrorContains(t, err, "duplicate department")

	_, err = Parse([]byte("zonal_offices:\n  - id: north\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("departments: {not: [a list"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
