/*-
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mfreeman451/meshradar/pkg/models"
)

// PushResult is returned by the packet and node push endpoints.
type PushResult struct {
	Accepted int    `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

func decodeBody(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", ErrBadBody, err)
	}

	return nil
}

func (s *APIServer) write(w http.ResponseWriter, r *http.Request) {
	var samples []models.Sample

	if err := decodeBody(r, &samples); err != nil {
		respondError(w, err)
		return
	}

	res, err := s.opts.Mesh.Ingest(r.Context(), samples)
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, res)
}

func (s *APIServer) packets(w http.ResponseWriter, r *http.Request) {
	var packets []models.Packet

	if err := decodeBody(r, &packets); err != nil {
		respondError(w, err)
		return
	}

	n, err := s.opts.Mesh.HandlePackets(packets)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Response{
			Status:    statusError,
			Data:      PushResult{Accepted: n},
			ErrorType: errorBadData,
			Error:     err.Error(),
		})

		return
	}

	respond(w, PushResult{Accepted: n})
}

func (s *APIServer) pushNodes(w http.ResponseWriter, r *http.Request) {
	var nodes []models.NodeInfo

	if err := decodeBody(r, &nodes); err != nil {
		respondError(w, err)
		return
	}

	n, err := s.opts.Mesh.UpdateNodes(nodes, s.now())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Response{
			Status:    statusError,
			Data:      PushResult{Accepted: n},
			ErrorType: errorBadData,
			Error:     err.Error(),
		})

		return
	}

	respond(w, PushResult{Accepted: n})
}

func (s *APIServer) getNodes(w http.ResponseWriter, _ *http.Request) {
	respond(w, s.opts.Mesh.Nodes(s.now()))
}

func (s *APIServer) getNode(w http.ResponseWriter, r *http.Request) {
	num, err := parseNodeNum(mux.Vars(r)["num"])
	if err != nil {
		respondError(w, err)
		return
	}

	node, ok := s.opts.Mesh.Node(num)
	if !ok {
		respondError(w, fmt.Errorf("%w: %d", ErrNodeNotFound, num))
		return
	}

	respond(w, node)
}
