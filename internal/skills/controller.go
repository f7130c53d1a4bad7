package skills

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Arbitration policies.
const (
	ArbitrateAll             = "all"
	ArbitrateHighestPriority = "highest_priority"
)

// Deps carries what a controller and its skills need from the connection.
type Deps struct {
	AccountID   string // Device account the skills act for
	Password    string // Credential presented to remote skill services
	Arbitration string
	Registry    *Registry
	OnReply     func(Reply)
	HTTPClient  *http.Client
	Dialer      *websocket.Dialer
	UserAgent   string
	Logger      *slog.Logger
}

// Factory builds a skill from its manifest entry.
type Factory func(data SkillData, deps Deps) (Skill, error)

// Registry maps skill ids to factories. Ids without a factory use the
// fallback, which proxies to a remote service.
type Registry struct {
	factories map[string]Factory
	fallback  Factory
	warned    sync.Map
}

// NewRegistry returns a registry with the built-in skills.
func NewRegistry() *Registry {
	return &Registry{
		factories: map[string]Factory{
			"clock": newClock,
			"echo":  newEcho,
		},
		fallback: newRemote,
	}
}

// Register adds or replaces the factory for id. Not safe for use once
// controllers are being built.
func (r *Registry) Register(id string, f Factory) {
	r.factories[id] = f
}

func (r *Registry) build(data SkillData, deps Deps) (Skill, error) {
	f, ok := r.factories[data.ID]
	if !ok {
		f = r.fallback
	}
	return f(data, deps)
}

// warnOnce reports whether id has not been warned about before.
func (r *Registry) warnOnce(id string) bool {
	_, loaded := r.warned.LoadOrStore(id, struct{}{})
	return !loaded
}

// Activation describes an active skill.
type Activation struct {
	ID       string `json:"id"`
	Priority int    `json:"priority"`
}

// Controller holds the skills of one device. The skill set is fixed at
// construction.
type Controller struct {
	skills      []Skill
	criteria    map[string]LaunchCriteria
	arbitration string
	onReply     func(Reply)
	logger      *slog.Logger
}

// NewController builds the skills listed in the manifest. Skills that fail
// to build are skipped.
func NewController(manifest Manifest, deps Deps) *Controller {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Registry == nil {
		deps.Registry = NewRegistry()
	}
	if deps.OnReply == nil {
		deps.OnReply = func(Reply) {}
	}
	if deps.Arbitration == "" {
		deps.Arbitration = ArbitrateAll
	}

	c := &Controller{
		criteria:    make(map[string]LaunchCriteria, len(manifest.Skills)),
		arbitration: deps.Arbitration,
		onReply:     deps.OnReply,
		logger:      deps.Logger,
	}

	for _, data := range manifest.Skills {
		skill, err := deps.Registry.build(data, deps)
		if err != nil {
			if errors.Is(err, ErrSkillNotConfigured) {
				if deps.Registry.warnOnce(data.ID) {
					c.logger.Warn("skill not activated", "skill", data.ID, "error", err)
				}
			} else {
				c.logger.Warn("skill failed to start", "skill", data.ID, "error", err)
			}
			continue
		}
		c.skills = append(c.skills, skill)
		c.criteria[data.ID] = data.LaunchCriteria
	}

	return c
}

// Activated lists the active skills in manifest order.
func (c *Controller) Activated() []Activation {
	out := make([]Activation, 0, len(c.skills))
	for _, s := range c.skills {
		out = append(out, Activation{ID: s.ID(), Priority: s.Priority()})
	}
	return out
}

// Broadcast delivers ev to every skill in manifest order and forwards the
// synchronous replies according to the arbitration policy.
func (c *Controller) Broadcast(ev Event) {
	var replies []Reply
	for _, s := range c.skills {
		if !c.criteria[s.ID()].Accepts(ev) {
			continue
		}
		if r := s.Handle(ev); r != nil {
			replies = append(replies, *r)
		}
	}

	for _, r := range c.arbitrate(replies) {
		c.onReply(r)
	}
}

func (c *Controller) arbitrate(replies []Reply) []Reply {
	if c.arbitration != ArbitrateHighestPriority || len(replies) < 2 {
		return replies
	}
	best := 0
	for i, r := range replies {
		if r.Priority > replies[best].Priority {
			best = i
		}
	}
	return replies[best : best+1]
}

// Close releases skills holding connections.
func (c *Controller) Close() {
	for _, s := range c.skills {
		if closer, ok := s.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				c.logger.Debug("skill close failed", "skill", s.ID(), "error", err)
			}
		}
	}
}
