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

// Package did builds and resolves the agent's W3C DID document. The runtime
// resolves only its own identity; anything else is unknown.
package did

import "errors"

// ErrUnknownDID is returned when resolution is attempted for a foreign DID.
var ErrUnknownDID = errors.New("unknown DID")

// Document is a minimal W3C DID document describing the agent and its A2A
// service endpoint.
type Document struct {
	Context     []string  `json:"@context"`
	ID          string    `json:"id"`
	Service     []Service `json:"service,omitempty"`
	AlsoKnownAs []string  `json:"alsoKnownAs,omitempty"`
}

// Service is a DID service endpoint entry.
type Service struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	ServiceEndpoint string `json:"serviceEndpoint"`
}

// Resolver answers resolution requests for the agent's own DID.
type Resolver struct {
	doc *Document
}

// NewResolver builds the document for this deployment. did may be empty, in
// which case every resolution fails.
func NewResolver(didID, agentName, serviceURL string) *Resolver {
	if didID == "" {
		return &Resolver{}
	}
	doc := &Document{
		Context: []string{"https://www.w3.org/ns/did/v1"},
		ID:      didID,
	}
	if agentName != "" {
		doc.AlsoKnownAs = []string{agentName}
	}
	if serviceURL != "" {
		doc.Service = []Service{{
			ID:              didID + "#agent",
			Type:            "A2AService",
			ServiceEndpoint: serviceURL,
		}}
	}
	return &Resolver{doc: doc}
}

// Resolve returns the DID document iff the requested DID is this agent's own.
func (r *Resolver) Resolve(didID string) (*Document, error) {
	if r.doc == nil || didID == "" || didID != r.doc.ID {
		return nil, ErrUnknownDID
	}
	return r.doc, nil
}

// DID returns this agent's DID, or "" when identity is not configured.
func (r *Resolver) DID() string {
	if r.doc == nil {
		return ""
	}
	return r.doc.ID
}
