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

package protocol

// AgentCard is the discovery document served at /.well-known/agent.json.
type AgentCard struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Description     string            `json:"description"`
	URL             string            `json:"url"`
	Version         string            `json:"version"`
	ProtocolVersion string            `json:"protocolVersion"`
	Kind            TaskKind          `json:"kind"`
	Capabilities    AgentCapabilities `json:"capabilities"`
	Skills          []SkillSummary    `json:"skills,omitempty"`
	AgentTrust      *AgentTrust       `json:"agentTrust,omitempty"`
	InputModes      []string          `json:"defaultInputModes"`
	OutputModes     []string          `json:"defaultOutputModes"`
}

// AgentCapabilities declares what the agent deployment supports.
type AgentCapabilities struct {
	Streaming         bool             `json:"streaming"`
	PushNotifications bool             `json:"pushNotifications"`
	Extensions        []AgentExtension `json:"extensions,omitempty"`
}

// AgentExtension advertises a capability extension (e.g. the DID extension).
type AgentExtension struct {
	URI      string         `json:"uri"`
	Required bool           `json:"required"`
	Params   map[string]any `json:"params,omitempty"`
}

// SkillSummary is the abbreviated skill entry on the agent card: id, name and
// a documentation link only.
type SkillSummary struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	DocumentationURL string `json:"documentationUrl,omitempty"`
}

// AgentTrust carries identity and provenance information.
type AgentTrust struct {
	DID       string `json:"did,omitempty"`
	Author    string `json:"author,omitempty"`
	Verified  bool   `json:"verified"`
	Provider  string `json:"provider,omitempty"`
	Signature string `json:"signature,omitempty"`
}
