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

// executeMethod invokes one server method with the request's ordered
// typed input arguments and delivers the decoded outputs as a general
// response.
func (a *Adapter) executeMethod(s *session, msg *Message) error {
	req := msg.Request1()
	if req == nil || req.MethodParams == nil {
		return fmt.Errorf("%w: method request missing parameters", ErrInvalidRequest)
	}
	params := req.MethodParams

	inputs := make([]Variant, len(params.Inputs))
	for i, in := range params.Inputs {
		variant, err := encodeValue(in)
		if err != nil {
			return fmt.Errorf("method input %d: %w", i, err)
		}
		inputs[i] = *variant
	}

	a.metrics.ServiceCalls.Add(1)
	var resp *CallResponse
	err := s.subs.withSerialize(func() error {
		var cerr error
		resp, cerr = s.client.Call(params.ObjectID, params.MethodID, inputs)
		return cerr
	})
	if err != nil {
		a.metrics.ServiceErrors.Add(1)
		a.sendErrorResponse(msg, StatusServiceResultBad, fmt.Sprintf("Error in method call: %v", err))
		return nil
	}
	if resp.ServiceResult.IsBad() {
		a.metrics.ServiceErrors.Add(1)
		a.sendErrorResponse(msg, StatusServiceResultBad,
			fmt.Sprintf("Error in method call: %s", resp.ServiceResult))
		return nil
	}
	if resp.StatusCode.IsBad() {
		a.sendErrorResponse(msg, StatusError, resp.StatusCode.String())
		return nil
	}

	result := &Message{
		ID:        msg.ID,
		Endpoint:  msg.Endpoint,
		Type:      GeneralResponse,
		Command:   CmdMethod,
		Responses: make([]*Response, 0, len(resp.OutputArguments)),
	}
	for i := range resp.OutputArguments {
		value, derr := decodeVariant(&resp.OutputArguments[i])
		if derr != nil {
			a.sendErrorResponse(msg, StatusError,
				fmt.Sprintf("Bad output argument at position(%d)", i))
			continue
		}
		result.Responses = append(result.Responses, &Response{
			RequestID: req.RequestID,
			NodeInfo:  cloneNodeInfo(req.NodeInfo),
			Type:      value.Type,
			Value:     value,
		})
	}
	return a.enqueueMessage(result)
}
