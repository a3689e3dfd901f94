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

// executeRead reads the value (or minimum sampling interval) attribute of
// every requested node in one batched service call. Bad per-node results
// are isolated: each becomes a position-tagged error message while the
// good results are aggregated into a single general response.
func (a *Adapter) executeRead(s *session, msg *Message) error {
	attr := AttributeValue
	if msg.Command == CmdReadSamplingInterval {
		attr = AttributeMinimumSamplingInterval
	}

	nodesToRead := make([]ReadValueID, len(msg.Requests))
	for i, req := range msg.Requests {
		nodesToRead[i] = ReadValueID{
			NodeID:      req.NodeInfo.NodeID,
			AttributeID: attr,
		}
	}

	a.metrics.ServiceCalls.Add(1)
	var resp *ReadResponse
	err := s.subs.withSerialize(func() error {
		var cerr error
		resp, cerr = s.client.Read(nodesToRead, TimestampsToReturnBoth)
		return cerr
	})
	if err != nil {
		a.metrics.ServiceErrors.Add(1)
		a.sendErrorResponse(msg, StatusServiceResultBad, fmt.Sprintf("Error in read: %v", err))
		return nil
	}
	if resp.ServiceResult.IsBad() {
		a.metrics.ServiceErrors.Add(1)
		a.sendErrorResponse(msg, StatusServiceResultBad,
			fmt.Sprintf("Error in read: %s", resp.ServiceResult))
		return nil
	}

	result := &Message{
		ID:        msg.ID,
		Endpoint:  msg.Endpoint,
		Type:      GeneralResponse,
		Command:   msg.Command,
		Responses: make([]*Response, 0, len(msg.Requests)),
	}

	for i, dv := range resp.Results {
		if i >= len(msg.Requests) {
			break
		}
		if dv.StatusCode.IsBad() {
			a.logger.Debug("bad read result", "position", i, "status", dv.StatusCode.String())
			if len(msg.Requests) == 1 {
				a.sendErrorResponse(msg, StatusError, "Bad service result for the given node")
				return nil
			}
			a.sendErrorResponse(msg, StatusError,
				fmt.Sprintf("Bad service result for the node at position(%d)", i))
			continue
		}

		value, derr := decodeVariant(dv.Value)
		if derr != nil {
			if len(msg.Requests) == 1 {
				a.sendErrorResponse(msg, StatusError, derr.Error())
				return nil
			}
			a.sendErrorResponse(msg, StatusError,
				fmt.Sprintf("Bad service result for the node at position(%d)", i))
			continue
		}

		result.Responses = append(result.Responses, &Response{
			RequestID: msg.Requests[i].RequestID,
			NodeInfo:  cloneNodeInfo(msg.Requests[i].NodeInfo),
			Type:      value.Type,
			Value:     value,
		})
	}

	if len(result.Responses) == 0 {
		a.sendErrorResponse(msg, StatusError, "There are no valid responses")
		return nil
	}
	return a.enqueueMessage(result)
}

func cloneNodeInfo(info *NodeInfo) *NodeInfo {
	if info == nil {
		return nil
	}
	c := *info
	return &c
}

// sendErrorResponse enqueues one error message corresponding to the
// source request.
func (a *Adapter) sendErrorResponse(src *Message, status Status, desc string) {
	errMsg := &Message{
		ID:       src.ID,
		Endpoint: src.Endpoint,
		Type:     ErrorResponse,
		Command:  src.Command,
		Result:   &Result{Status: status, Description: desc},
		Responses: []*Response{{
			Type:  TypeString,
			Value: NewValue(TypeString, desc),
		}},
	}
	if err := a.enqueueMessage(errMsg); err != nil {
		a.logger.Warn("failed to enqueue error response", "err", err)
	}
}
