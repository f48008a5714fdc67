package roster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"ciphercore.app/convo/internal/model"
	"github.com/invopop/jsonschema"
)

var ErrUnknownAgent = errors.New("unknown agent")

// FileEntry is the on-disk shape of one roster entry.
type FileEntry struct {
	Name        string `json:"name" jsonschema:"required,minLength=1"`
	Personality string `json:"personality" jsonschema:"required,enum=critical,enum=visionary,enum=conservative,enum=neutral,enum=kritisch,enum=visionär,enum=konservativ"`
	Description string `json:"description" jsonschema:"required"`
}

// Roster is the set of agents a caller can pick from.
type Roster struct {
	agents []model.AgentDefinition
}

func New(agents []model.AgentDefinition) *Roster {
	return &Roster{agents: append([]model.AgentDefinition(nil), agents...)}
}

// LoadFile reads a JSON roster. A missing or malformed file is logged and
// yields an empty roster, never an error.
func LoadFile(ctx context.Context, path string) *Roster {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.WarnContext(ctx, "roster file not found, starting with an empty roster", "path", path)
		} else {
			slog.ErrorContext(ctx, "failed to read roster file", "path", path, "error", err)
		}
		return New(nil)
	}

	agents, err := Parse(data)
	if err != nil {
		slog.ErrorContext(ctx, "roster file is invalid, starting with an empty roster", "path", path, "error", err)
		return New(nil)
	}

	slog.InfoContext(ctx, "roster loaded", "path", path, "agents", len(agents))
	return New(agents)
}

// Parse decodes a JSON array of FileEntry. Any invalid entry rejects the whole document.
func Parse(data []byte) ([]model.AgentDefinition, error) {
	var entries []FileEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decoding roster: %w", err)
	}

	agents := make([]model.AgentDefinition, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("entry %d: name is required", i)
		}
		if seen[name] {
			return nil, fmt.Errorf("entry %d: duplicate agent %q", i, name)
		}
		seen[name] = true

		p, err := model.ParsePersonality(e.Personality)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		agents = append(agents, model.AgentDefinition{
			Name:        name,
			Personality: p,
			Instruction: e.Description,
		})
	}
	return agents, nil
}

func (r *Roster) Agents() []model.AgentDefinition {
	return append([]model.AgentDefinition(nil), r.agents...)
}

func (r *Roster) Len() int {
	return len(r.agents)
}

func (r *Roster) Lookup(name string) (model.AgentDefinition, bool) {
	for _, a := range r.agents {
		if a.Name == name {
			return a, true
		}
	}
	return model.AgentDefinition{}, false
}

// Select returns the named agents in the given order. overrides replaces the
// personality of individual agents for this selection only.
func (r *Roster) Select(names []string, overrides map[string]model.Personality) ([]model.AgentDefinition, error) {
	selected := make([]model.AgentDefinition, 0, len(names))
	for _, name := range names {
		a, ok := r.Lookup(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownAgent, name)
		}
		if p, ok := overrides[a.Name]; ok {
			a.Personality = p
		}
		selected = append(selected, a)
	}
	return selected, nil
}

// Schema describes the roster file format.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect([]FileEntry{})
}
