package profiles

import (
	"fmt"
	"sort"
	"strings"

	"github.com/therealutkarshpriyadarshi/mediastream/internal/formats"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/logging"
	"github.com/therealutkarshpriyadarshi/mediastream/pkg/models"
)

// Manager holds the client capability profiles and resolves transcoding
// descriptors from their rules. Profiles are immutable after construction.
type Manager struct {
	profiles  map[string]*models.ClientProfile
	defaultID string
	logger    *logging.Logger
}

// NewManager validates the profiles and builds a manager. defaultID names
// the profile used for unknown ids; when empty the built-in generic profile
// is the default.
func NewManager(profiles []models.ClientProfile, defaultID string, logger *logging.Logger) (*Manager, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	m := &Manager{
		profiles: make(map[string]*models.ClientProfile, len(profiles)+1),
		logger:   logger.WithComponent("profiles"),
	}

	for i := range profiles {
		p := profiles[i]
		if err := validate(&p); err != nil {
			return nil, err
		}
		if _, dup := m.profiles[p.ID]; dup {
			return nil, fmt.Errorf("duplicate client profile %q", p.ID)
		}
		m.profiles[p.ID] = &p
	}

	generic := formats.DefaultProfile()
	if _, ok := m.profiles[generic.ID]; !ok {
		m.profiles[generic.ID] = generic
	}

	if defaultID == "" {
		defaultID = generic.ID
	}
	if _, ok := m.profiles[defaultID]; !ok {
		return nil, fmt.Errorf("default client profile %q is not defined", defaultID)
	}
	m.defaultID = defaultID

	return m, nil
}

func validate(p *models.ClientProfile) error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("client profile %q has no id", p.Name)
	}
	for i, mapping := range p.Mappings {
		if mapping.Tag == "" || mapping.Mime == "" {
			return fmt.Errorf("client profile %q: mapping %d needs a tag and a mime type", p.ID, i)
		}
	}
	for i, rule := range p.Rules {
		if models.ParseMediaKind(rule.Kind) == models.MediaKindUnknown {
			return fmt.Errorf("client profile %q: rule %d has unknown kind %q", p.ID, i, rule.Kind)
		}
		if rule.Target.Container == "" {
			return fmt.Errorf("client profile %q: rule %d has no target container", p.ID, i)
		}
		switch models.SubtitlePolicy(strings.ToLower(rule.Target.Subtitles)) {
		case "", models.SubtitlesNone, models.SubtitlesBurn, models.SubtitlesCopy:
		default:
			return fmt.Errorf("client profile %q: rule %d has unknown subtitle policy %q", p.ID, i, rule.Target.Subtitles)
		}
	}
	return nil
}

// Profile returns the profile with the given id
func (m *Manager) Profile(id string) (*models.ClientProfile, bool) {
	p, ok := m.profiles[id]
	return p, ok
}

// Default returns the default profile
func (m *Manager) Default() *models.ClientProfile {
	return m.profiles[m.defaultID]
}

// Lookup returns the profile with the given id, or the default
func (m *Manager) Lookup(id string) *models.ClientProfile {
	if p, ok := m.profiles[id]; ok {
		return p
	}
	return m.Default()
}

// Profiles returns all profiles ordered by id
func (m *Manager) Profiles() []*models.ClientProfile {
	out := make([]*models.ClientProfile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
