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

package server

import (
	"github.com/google/uuid"

	"github.com/getbindu/bindu/pkg/protocol"
)

// Card returns the cached agent card. The card is stable across requests in
// one process and regenerated only when the public URL changes.
func (s *Server) Card() *protocol.AgentCard {
	s.cardMu.RLock()
	defer s.cardMu.RUnlock()
	return s.card
}

// SetCardURL swaps the public URL (e.g. after a tunnel restart) and rebuilds
// the card.
func (s *Server) SetCardURL(url string) {
	s.setCardURL(url)
}

func (s *Server) setCardURL(url string) {
	s.cardMu.Lock()
	defer s.cardMu.Unlock()
	if s.card != nil && s.cardURL == url {
		return
	}
	s.cardURL = url
	s.card = s.buildCard(url)
}

func (s *Server) buildCard(url string) *protocol.AgentCard {
	agent := s.cfg.Agent
	id := agent.ID
	if id == "" {
		id = uuid.NewString()
	}

	card := &protocol.AgentCard{
		ID:              id,
		Name:            agent.Name,
		Description:     agent.Description,
		URL:             url,
		Version:         agent.Version,
		ProtocolVersion: protocol.ProtocolVersion,
		Kind:            protocol.TaskKind(agent.Kind),
		Capabilities: protocol.AgentCapabilities{
			Streaming:         false,
			PushNotifications: s.cfg.Push.Enabled,
		},
		InputModes:  agent.InputModes,
		OutputModes: agent.OutputModes,
	}
	if s.components.Skills != nil {
		card.Skills = s.components.Skills.Summaries()
	}
	if agent.DID != "" || agent.Author != "" {
		card.AgentTrust = &protocol.AgentTrust{
			DID:    agent.DID,
			Author: agent.Author,
		}
	}
	if agent.DID != "" {
		card.Capabilities.Extensions = append(card.Capabilities.Extensions, protocol.AgentExtension{
			URI:      "https://w3.org/ns/did/v1",
			Required: false,
			Params:   map[string]any{"did": agent.DID},
		})
	}
	return card
}
