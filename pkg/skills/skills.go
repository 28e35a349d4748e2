// Copyright 2025 The Bindu Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package skills holds the agent's advertised skill metadata. The agent card
// carries summaries only; full details and documentation bodies live behind
// the /agent/skills endpoints.
package skills

import (
	"fmt"
	"strings"

	"github.com/getbindu/bindu/pkg/config"
	"github.com/getbindu/bindu/pkg/protocol"
)

// Skill is the full skill record served at /agent/skills/{id}.
type Skill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	InputModes  []string `json:"inputModes,omitempty"`
	OutputModes []string `json:"outputModes,omitempty"`

	documentation string
}

// Registry is the immutable skill catalog, built once at startup.
type Registry struct {
	baseURL string
	order   []string
	byID    map[string]*Skill
}

// NewRegistry builds the catalog from configuration. baseURL anchors the
// documentation links on the card.
func NewRegistry(baseURL string, cfgs []config.SkillConfig) (*Registry, error) {
	r := &Registry{
		baseURL: strings.TrimRight(baseURL, "/"),
		byID:    make(map[string]*Skill, len(cfgs)),
	}
	for _, c := range cfgs {
		if c.ID == "" {
			return nil, fmt.Errorf("skill without id")
		}
		if _, ok := r.byID[c.ID]; ok {
			return nil, fmt.Errorf("duplicate skill id: %s", c.ID)
		}
		r.byID[c.ID] = &Skill{
			ID:            c.ID,
			Name:          c.Name,
			Description:   c.Description,
			Tags:          c.Tags,
			InputModes:    c.InputModes,
			OutputModes:   c.OutputModes,
			documentation: c.Documentation,
		}
		r.order = append(r.order, c.ID)
	}
	return r, nil
}

// Summaries returns the abbreviated entries embedded in the agent card, in
// configuration order.
func (r *Registry) Summaries() []protocol.SkillSummary {
	out := make([]protocol.SkillSummary, 0, len(r.order))
	for _, id := range r.order {
		skill := r.byID[id]
		out = append(out, protocol.SkillSummary{
			ID:               skill.ID,
			Name:             skill.Name,
			DocumentationURL: r.documentationURL(skill.ID),
		})
	}
	return out
}

// List returns the full records in configuration order.
func (r *Registry) List() []*Skill {
	out := make([]*Skill, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Get returns the skill or false when the id is unknown.
func (r *Registry) Get(id string) (*Skill, bool) {
	skill, ok := r.byID[id]
	return skill, ok
}

// Documentation returns the raw documentation body for a skill.
func (r *Registry) Documentation(id string) (string, bool) {
	skill, ok := r.byID[id]
	if !ok {
		return "", false
	}
	return skill.documentation, true
}

func (r *Registry) documentationURL(id string) string {
	if r.baseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/agent/skills/%s/documentation", r.baseURL, id)
}
