package schedule

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"attendancehub/internal/model"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

// Group is a recurring weekly class slot. Days uses 0=Sunday .. 6=Saturday.
type Group struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Days []int  `json:"days,omitempty" yaml:"days,omitempty"`
}

// IsEvent reports whether g is the others pseudo-group.
func (g Group) IsEvent() bool { return g.ID == model.OthersGroupID }

// Court is a physical venue with its own group schedule.
type Court struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	RosterPools []string `json:"rosterPools,omitempty" yaml:"rosterPools,omitempty"`
	Groups      []Group  `json:"groups" yaml:"groups"`
}

// OthersGroup is the pseudo-group offered on every court for ad-hoc events.
func OthersGroup() Group {
	return Group{ID: model.OthersGroupID, Name: "Others (Event)"}
}

// Catalog is the static, read-only court and group configuration. It is
// safe for concurrent use.
type Catalog struct {
	courts []Court
	index  map[string]int
}

type catalogFile struct {
	Courts []Court `yaml:"courts"`
}

// NewCatalog validates courts and builds a catalog over a private copy.
func NewCatalog(courts []Court) (*Catalog, error) {
	c := &Catalog{index: make(map[string]int, len(courts))}
	for _, court := range courts {
		if court.ID == "" {
			return nil, fmt.Errorf("catalog: court without id")
		}
		if _, dup := c.index[court.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate court %q", court.ID)
		}
		seen := make(map[string]bool, len(court.Groups))
		for _, g := range court.Groups {
			if g.ID == "" || g.ID == model.OthersGroupID {
				return nil, fmt.Errorf("catalog: court %s: invalid group id %q", court.ID, g.ID)
			}
			if seen[g.ID] {
				return nil, fmt.Errorf("catalog: court %s: duplicate group %q", court.ID, g.ID)
			}
			seen[g.ID] = true
			for _, d := range g.Days {
				if d < 0 || d > 6 {
					return nil, fmt.Errorf("catalog: group %s: day %d out of range", g.ID, d)
				}
			}
		}
		c.index[court.ID] = len(c.courts)
		c.courts = append(c.courts, cloneCourt(court))
	}
	return c, nil
}

// ParseCatalog decodes the YAML catalog format.
func ParseCatalog(raw []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	return NewCatalog(f.Courts)
}

// LoadCatalog reads a YAML catalog from path.
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return ParseCatalog(raw)
}

// DefaultCatalog returns the built-in five-court schedule.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic(err)
	}
	return c
}

// Courts returns every court in display order.
func (c *Catalog) Courts() []Court {
	out := make([]Court, len(c.courts))
	for i, court := range c.courts {
		out[i] = cloneCourt(court)
	}
	return out
}

// HasCourt reports whether courtID is configured.
func (c *Catalog) HasCourt(courtID string) bool {
	_, ok := c.index[courtID]
	return ok
}

// CourtName returns the display name, or the id for unknown courts.
func (c *Catalog) CourtName(courtID string) string {
	if i, ok := c.index[courtID]; ok {
		return c.courts[i].Name
	}
	return courtID
}

// ResolveGroups returns the court's groups in display order. Unknown courts
// yield an empty slice.
func (c *Catalog) ResolveGroups(courtID string) []Group {
	i, ok := c.index[courtID]
	if !ok {
		return []Group{}
	}
	return cloneGroups(c.courts[i].Groups)
}

// Group finds a scheduled group on a court. The others pseudo-group
// resolves on every known court.
func (c *Catalog) Group(courtID, groupID string) (Group, bool) {
	i, ok := c.index[courtID]
	if !ok {
		return Group{}, false
	}
	if groupID == model.OthersGroupID {
		return OthersGroup(), true
	}
	for _, g := range c.courts[i].Groups {
		if g.ID == groupID {
			g.Days = append([]int(nil), g.Days...)
			return g, true
		}
	}
	return Group{}, false
}

// RosterGroupIDs lists the student group ids that belong to a court: its
// scheduled groups followed by its shared roster pools.
func (c *Catalog) RosterGroupIDs(courtID string) []string {
	i, ok := c.index[courtID]
	if !ok {
		return nil
	}
	court := c.courts[i]
	ids := make([]string, 0, len(court.Groups)+len(court.RosterPools))
	for _, g := range court.Groups {
		ids = append(ids, g.ID)
	}
	return append(ids, court.RosterPools...)
}

// HasRosterGroup reports whether groupID is a scheduled group or a roster
// pool of any court.
func (c *Catalog) HasRosterGroup(groupID string) bool {
	for _, court := range c.courts {
		for _, g := range court.Groups {
			if g.ID == groupID {
				return true
			}
		}
		for _, pool := range court.RosterPools {
			if pool == groupID {
				return true
			}
		}
	}
	return false
}

func cloneCourt(c Court) Court {
	c.RosterPools = append([]string(nil), c.RosterPools...)
	c.Groups = cloneGroups(c.Groups)
	return c
}

func cloneGroups(gs []Group) []Group {
	out := make([]Group, len(gs))
	for i, g := range gs {
		g.Days = append([]int(nil), g.Days...)
		out[i] = g
	}
	return out
}
