package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Catalog-governed columns of the benefits relation.
const (
	FieldArea              = "area"
	FieldDistrict          = "district"
	FieldGender            = "gender"
	FieldIncomeCategory    = "income_category"
	FieldPersonalCategory  = "personal_category"
	FieldHouseholdCategory = "household_category"
	FieldSupportType       = "support_type"
	FieldApplicationMethod = "application_method"
	FieldBenefitCategory   = "benefit_category"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

type Region struct {
	Name      string   `yaml:"name"`
	Aliases   []string `yaml:"aliases"`
	Districts []string `yaml:"districts"`
}

type catalogFile struct {
	Nationwide string              `yaml:"nationwide"`
	Regions    []Region            `yaml:"regions"`
	Fields     map[string][]string `yaml:"fields"`
}

// Catalog is the set of legal literal values per governed field. It is
// immutable after construction and safe for concurrent reads.
type Catalog struct {
	nationwide    string
	regions       []Region
	values        map[string][]string
	sets          map[string]map[string]struct{}
	districtAreas map[string][]string
	// districts sorted longest first for substring scans.
	districtsByLen []string
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(embeddedCatalog)
		if err != nil {
			panic(fmt.Sprintf("catalog: embedded catalog is invalid: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Load reads a catalog file, or returns the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(file.Regions) == 0 {
		return nil, fmt.Errorf("catalog has no regions")
	}

	c := &Catalog{
		nationwide:    strings.TrimSpace(file.Nationwide),
		regions:       file.Regions,
		values:        make(map[string][]string, len(file.Fields)+2),
		sets:          make(map[string]map[string]struct{}, len(file.Fields)+2),
		districtAreas: make(map[string][]string),
	}

	areas := make([]string, 0, len(file.Regions)+1)
	if c.nationwide != "" {
		areas = append(areas, c.nationwide)
	}
	districts := make([]string, 0, 256)
	for _, region := range file.Regions {
		name := strings.TrimSpace(region.Name)
		if name == "" {
			return nil, fmt.Errorf("catalog region without name")
		}
		areas = append(areas, name)
		for _, district := range region.Districts {
			district = strings.TrimSpace(district)
			if district == "" {
				continue
			}
			districts = append(districts, district)
			c.districtAreas[district] = appendUnique(c.districtAreas[district], name)
		}
	}
	c.setField(FieldArea, areas)
	c.setField(FieldDistrict, districts)
	for field, values := range file.Fields {
		c.setField(field, values)
	}

	c.districtsByLen = append([]string(nil), c.values[FieldDistrict]...)
	sort.SliceStable(c.districtsByLen, func(i, j int) bool {
		return len(c.districtsByLen[i]) > len(c.districtsByLen[j])
	})
	return c, nil
}

func (c *Catalog) setField(field string, values []string) {
	field = strings.ToLower(strings.TrimSpace(field))
	set := make(map[string]struct{}, len(values))
	ordered := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := set[v]; ok {
			continue
		}
		set[v] = struct{}{}
		ordered = append(ordered, v)
	}
	c.values[field] = ordered
	c.sets[field] = set
}

// Governs reports whether literals bound to field must come from the catalog.
func (c *Catalog) Governs(field string) bool {
	_, ok := c.sets[strings.ToLower(field)]
	return ok
}

func (c *Catalog) Fields() []string {
	out := make([]string, 0, len(c.values))
	for field := range c.values {
		out = append(out, field)
	}
	sort.Strings(out)
	return out
}

func (c *Catalog) Values(field string) []string {
	return append([]string(nil), c.values[strings.ToLower(field)]...)
}

// Contains is an exact membership test.
func (c *Catalog) Contains(field, value string) bool {
	set, ok := c.sets[strings.ToLower(field)]
	if !ok {
		return false
	}
	_, ok = set[strings.TrimSpace(value)]
	return ok
}

// MatchesLike accepts a LIKE pattern when its literal core is contained in a
// catalog value or contains one.
func (c *Catalog) MatchesLike(field, pattern string) bool {
	values, ok := c.values[strings.ToLower(field)]
	if !ok {
		return false
	}
	core := LikeCore(pattern)
	if core == "" {
		return true
	}
	for _, v := range values {
		if strings.Contains(v, core) || strings.Contains(core, v) {
			return true
		}
	}
	return false
}

// LikeCore strips LIKE wildcards from a pattern.
func LikeCore(pattern string) string {
	return strings.TrimSpace(strings.NewReplacer("%", "", "_", "").Replace(pattern))
}

func (c *Catalog) Nationwide() string {
	return c.nationwide
}

func (c *Catalog) Regions() []Region {
	return append([]Region(nil), c.regions...)
}

// AreasForDistrict lists the regions that contain a district name.
func (c *Catalog) AreasForDistrict(district string) []string {
	return append([]string(nil), c.districtAreas[strings.TrimSpace(district)]...)
}

// FindDistricts returns catalog districts mentioned in text, in order of
// appearance. A district nested inside a longer match is skipped.
func (c *Catalog) FindDistricts(text string) []string {
	type hit struct {
		name string
		pos  int
	}
	var hits []hit
	taken := make([]bool, len(text))
	for _, district := range c.districtsByLen {
		pos := strings.Index(text, district)
		if pos < 0 || overlaps(taken, pos, len(district)) {
			continue
		}
		for i := pos; i < pos+len(district); i++ {
			taken[i] = true
		}
		hits = append(hits, hit{name: district, pos: pos})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.name)
	}
	return out
}

// FindAreas returns regions named in text by full name or alias.
func (c *Catalog) FindAreas(text string) []string {
	var out []string
	for _, region := range c.regions {
		names := append([]string{region.Name}, region.Aliases...)
		for _, name := range names {
			if name != "" && strings.Contains(text, name) {
				out = appendUnique(out, region.Name)
				break
			}
		}
	}
	return out
}

func overlaps(taken []bool, pos, n int) bool {
	for i := pos; i < pos+n && i < len(taken); i++ {
		if taken[i] {
			return true
		}
	}
	return false
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
