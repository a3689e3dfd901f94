// Copyright 2025 Edgeo SCADA
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

package uaedge

import "fmt"

// executeWrite writes the typed value of every requested node in one
// batched service call, with the same per-position error isolation as
// read.
func (a *Adapter) executeWrite(s *session, msg *Message) error {
	nodesToWrite := make([]WriteValue, len(msg.Requests))
	for i, req := range msg.Requests {
		variant, err := encodeValue(req.Value)
		if err != nil {
			return fmt.Errorf("write request %d: %w", i, err)
		}
		nodesToWrite[i] = WriteValue{
			NodeID:      req.NodeInfo.NodeID,
			AttributeID: AttributeValue,
			Value:       DataValue{Value: variant},
		}
	}

	a.metrics.ServiceCalls.Add(1)
	var resp *WriteResponse
	err := s.subs.withSerialize(func() error {
		var cerr error
		resp, cerr = s.client.Write(nodesToWrite)
		return cerr
	})
	if err != nil {
		a.metrics.ServiceErrors.Add(1)
		a.sendErrorResponse(msg, StatusServiceResultBad, fmt.Sprintf("Error in write: %v", err))
		return nil
	}
	if resp.ServiceResult.IsBad() {
		a.metrics.ServiceErrors.Add(1)
		a.sendErrorResponse(msg, StatusServiceResultBad,
			fmt.Sprintf("Error in write: %s", resp.ServiceResult))
		return nil
	}

	result := &Message{
		ID:        msg.ID,
		Endpoint:  msg.Endpoint,
		Type:      GeneralResponse,
		Command:   CmdWrite,
		Responses: make([]*Response, 0, len(msg.Requests)),
	}

	for i, status := range resp.Results {
		if i >= len(msg.Requests) {
			break
		}
		if status.IsBad() {
			a.logger.Debug("bad write result", "position", i, "status", status.String())
			if len(msg.Requests) == 1 {
				a.sendErrorResponse(msg, StatusError, "Bad service result for the given node")
				return nil
			}
			a.sendErrorResponse(msg, StatusError,
				fmt.Sprintf("Bad service result for the node at position(%d)", i))
			continue
		}
		result.Responses = append(result.Responses, &Response{
			RequestID: msg.Requests[i].RequestID,
			NodeInfo:  cloneNodeInfo(msg.Requests[i].NodeInfo),
			Type:      TypeString,
			Value:     NewValue(TypeString, status.String()),
		})
	}

	if len(result.Responses) == 0 {
		a.sendErrorResponse(msg, StatusError, "There are no valid responses")
		return nil
	}
	return a.enqueueMessage(result)
}
