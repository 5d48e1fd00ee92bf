// Package content serves the portal's static directory: departments, zonal
// offices, the online services catalogue and complaint categories.
package content

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/AnshRaj112/municipal-portal-backend/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed catalogue.yaml
var embeddedCatalogue []byte

var (
	ErrDepartmentNotFound = errors.New("Department details not found")
	ErrZoneNotFound       = errors.New("Zone information not found")
)

type Official struct {
	Name        string `yaml:"name" json:"name"`
	Designation string `yaml:"designation" json:"designation"`
}

type ContactInfo struct {
	Phone  string `yaml:"phone" json:"phone"`
	Email  string `yaml:"email" json:"email"`
	Office string `yaml:"office" json:"office"`
}

type Department struct {
	ID          string      `yaml:"id" json:"id"`
	Name        string      `yaml:"name" json:"name"`
	Description string      `yaml:"description" json:"description"`
	Services    []string    `yaml:"services" json:"services"`
	Officials   []Official  `yaml:"officials" json:"officials"`
	Contact     ContactInfo `yaml:"contact" json:"contact_info"`
}

type ZonalOffice struct {
	ID          string     `yaml:"id" json:"id"`
	Name        string     `yaml:"name" json:"name"`
	Description string     `yaml:"description" json:"description"`
	Address     string     `yaml:"address" json:"address"`
	Timings     string     `yaml:"timings" json:"timings"`
	Phone       string     `yaml:"phone" json:"phone"`
	Email       string     `yaml:"email" json:"email"`
	Officials   []Official `yaml:"officials" json:"officials"`
	Areas       []string   `yaml:"areas" json:"areas"`
}

// Service is one entry of the online services catalogue. ApplicationPath is
// filled in on load for services that accept online applications.
type Service struct {
	ID              string `yaml:"id" json:"id"`
	Title           string `yaml:"title" json:"title"`
	Description     string `yaml:"description" json:"description"`
	Icon            string `yaml:"icon" json:"icon"`
	ApplicationPath string `yaml:"-" json:"application_path,omitempty"`
}

type Category struct {
	ID   models.ComplaintCategory `json:"id"`
	Name string                   `json:"name"`
}

// Catalogue is read-only after Load.
type Catalogue struct {
	Departments  []Department  `yaml:"departments"`
	ZonalOffices []ZonalOffice `yaml:"zonal_offices"`
	Services     []Service     `yaml:"services"`

	departments map[string]*Department
	zones       map[string]*ZonalOffice
}

// Load reads the catalogue from path, or the embedded copy when path is empty.
func Load(path string) (*Catalogue, error) {
	data := embeddedCatalogue
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read content file: %w", err)
		}
		data = b
	}
	return Parse(data)
}

// Parse decodes and indexes a YAML catalogue.
func Parse(data []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse content: %w", err)
	}

	c.departments = make(map[string]*Department, len(c.Departments))
	for i := range c.Departments {
		d := &c.Departments[i]
		if d.ID == "" || d.Name == "" {
			return nil, fmt.Errorf("department %d: id and name are required", i)
		}
		if _, dup := c.departments[d.ID]; dup {
			return nil, fmt.Errorf("duplicate department %q", d.ID)
		}
		c.departments[d.ID] = d
	}

	c.zones = make(map[string]*ZonalOffice, len(c.ZonalOffices))
	for i := range c.ZonalOffices {
		z := &c.ZonalOffices[i]
		if z.ID == "" || z.Name == "" {
			return nil, fmt.Errorf("zonal office %d: id and name are required", i)
		}
		if _, dup := c.zones[z.ID]; dup {
			return nil, fmt.Errorf("duplicate zonal office %q", z.ID)
		}
		c.zones[z.ID] = z
	}

	for i := range c.Services {
		s := &c.Services[i]
		if _, ok := models.ApplicationType(s.ID).Prefix(); ok {
			s.ApplicationPath = "/api/services/" + s.ID + "/applications"
		}
	}
	return &c, nil
}

func (c *Catalogue) Department(id string) (*Department, error) {
	d, ok := c.departments[id]
	if !ok {
		return nil, ErrDepartmentNotFound
	}
	return d, nil
}

func (c *Catalogue) ZonalOffice(id string) (*ZonalOffice, error) {
	z, ok := c.zones[id]
	if !ok {
		return nil, ErrZoneNotFound
	}
	return z, nil
}

// Categories lists complaint categories in display order.
func (c *Catalogue) Categories() []Category {
	out := make([]Category, 0, len(models.ComplaintCategories))
	for _, cat := range models.ComplaintCategories {
		out = append(out, Category{ID: cat, Name: cat.DisplayName()})
	}
	return out
}
