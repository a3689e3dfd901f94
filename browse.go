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

import (
	"fmt"
	"strings"
)

// Browse limits.
const (
	maxBrowseRequestSize      = 10
	maxContinuationPointBytes = 1000
	maxBrowseNameLength       = 1000
)

// browsePathFrame is one level of the current browse descent.
type browsePathFrame struct {
	nodeID     NodeID
	browseName string
}

// browsePath tracks the (nodeId, browseName) frames of one recursive
// browse call. It cuts cycles by browse name and renders the
// "/name/name" path for emitted references.
type browsePath struct {
	frames []browsePathFrame
}

func (p *browsePath) push(nodeID NodeID, browseName string) {
	p.frames = append(p.frames, browsePathFrame{nodeID: nodeID, browseName: browseName})
}

func (p *browsePath) pop() {
	if len(p.frames) > 0 {
		p.frames = p.frames[:len(p.frames)-1]
	}
}

// contains reports whether a frame with the given browse name is already
// on the current descent.
func (p *browsePath) contains(browseName string) bool {
	if browseName == "" {
		return false
	}
	for _, f := range p.frames {
		if f.browseName == browseName {
			return true
		}
	}
	return false
}

// current renders the frames as "/name/name". Frames without a browse
// name are skipped.
func (p *browsePath) current() string {
	var b strings.Builder
	for _, f := range p.frames {
		if f.browseName == "" {
			continue
		}
		b.WriteByte('/')
		b.WriteString(f.browseName)
	}
	return b.String()
}

// browseLevel is one batch of nodes browsed together.
type browseLevel struct {
	nodeIDs     []NodeID
	browseNames []string
	reqIDs      []int
}

// viewNodeInfo records a view node encountered while browsing for views.
type viewNodeInfo struct {
	nodeID     NodeID
	browseName string
}

// executeBrowse runs the recursive browse for a browse, browse-views or
// browse-next request message.
func (a *Adapter) executeBrowse(s *session, msg *Message) error {
	switch msg.Command {
	case CmdBrowseNext:
		if len(msg.ContinuationPoints) == 0 {
			return fmt.Errorf("%w: browse-next without continuation points", ErrInvalidRequest)
		}
	case CmdBrowseViews:
		return a.executeBrowseViews(s, msg)
	}

	level, ok := a.startLevel(msg)
	if !ok {
		return fmt.Errorf("%w: browse request size over limit", ErrInvalidRequest)
	}

	path := &browsePath{}
	status := a.browse(s, msg, msg.Command == CmdBrowseNext, level, nil, path)
	if status != StatusOK {
		a.sendErrorResponse(msg, status, "Browse failed")
	}
	return nil
}

// executeBrowseViews browses with the view node-class mask, accumulating
// encountered view nodes, then browses the accumulated views.
func (a *Adapter) executeBrowseViews(s *session, msg *Message) error {
	level, ok := a.startLevel(msg)
	if !ok {
		return fmt.Errorf("%w: browse request size over limit", ErrInvalidRequest)
	}

	var views []viewNodeInfo
	path := &browsePath{}
	status := a.browse(s, msg, false, level, &views, path)
	if status != StatusOK {
		a.sendErrorResponse(msg, status, "Browse views failed")
		return nil
	}
	if len(views) == 0 {
		return nil
	}

	next := &browseLevel{}
	for i, v := range views {
		if i == maxBrowseRequestSize {
			a.logger.Warn("too many view nodes, truncating", "count", len(views))
			break
		}
		next.nodeIDs = append(next.nodeIDs, v.nodeID)
		next.browseNames = append(next.browseNames, v.browseName)
		next.reqIDs = append(next.reqIDs, i)
	}
	viewPath := &browsePath{}
	if status := a.browse(s, msg, false, next, nil, viewPath); status != StatusOK {
		a.sendErrorResponse(msg, status, "Browse views failed")
	}
	return nil
}

// startLevel builds the first browse level from the request message. A
// request without a node id starts at the Root folder.
func (a *Adapter) startLevel(msg *Message) (*browseLevel, bool) {
	if len(msg.Requests) > maxBrowseRequestSize {
		a.sendBrowseError(msg, nil, StatusViewRequestSizeOver,
			"Browse request size exceeds the limit")
		return nil, false
	}

	level := &browseLevel{}
	for i, req := range msg.Requests {
		nodeID := NewNumericNodeID(0, RootFolderID)
		if req.NodeInfo != nil && !req.NodeInfo.NodeID.IsNull() {
			nodeID = req.NodeInfo.NodeID
		}
		browseName := ""
		if nodeID.Type == NodeIDTypeString {
			browseName = nodeID.String
		}
		level.nodeIDs = append(level.nodeIDs, nodeID)
		level.browseNames = append(level.browseNames, browseName)
		level.reqIDs = append(level.reqIDs, i)
	}
	if len(level.nodeIDs) == 0 {
		level.nodeIDs = append(level.nodeIDs, NewNumericNodeID(0, RootFolderID))
		level.browseNames = append(level.browseNames, "")
		level.reqIDs = append(level.reqIDs, 0)
	}
	return level, true
}

// browse issues one browse (or browse-next) call for the level's nodes
// and walks the results depth first. Validation failures of one
// reference never block its siblings; a browse name already on the
// current path cuts the recursion.
func (a *Adapter) browse(s *session, msg *Message, browseNext bool, level *browseLevel, views *[]viewNodeInfo, path *browsePath) Status {
	mask := browseNodeClassMask
	if views != nil {
		mask = viewNodeClassMask
	}

	direction := BrowseDirectionForward
	maxRefs := uint32(0)
	if msg.BrowseParam != nil {
		direction = msg.BrowseParam.Direction
		maxRefs = msg.BrowseParam.MaxReferencesPerNode
	}

	a.metrics.ServiceCalls.Add(1)
	var resp *BrowseServiceResponse
	err := s.subs.withSerialize(func() error {
		var cerr error
		if browseNext {
			cps := make([][]byte, len(msg.ContinuationPoints))
			for i, cp := range msg.ContinuationPoints {
				cps[i] = cp.ContinuationPoint
			}
			resp, cerr = s.client.BrowseNext(cps, false)
			return cerr
		}
		descs := make([]BrowseDescription, len(level.nodeIDs))
		for i, nodeID := range level.nodeIDs {
			descs[i] = BrowseDescription{
				NodeID:          nodeID,
				BrowseDirection: direction,
				ReferenceTypeID: NewNumericNodeID(0, 31), // References
				IncludeSubtypes: true,
				NodeClassMask:   mask,
				ResultMask:      0x3F,
			}
		}
		resp, cerr = s.client.Browse(descs, maxRefs)
		return cerr
	})
	if err != nil {
		a.metrics.ServiceErrors.Add(1)
		a.sendBrowseError(msg, nil, StatusServiceResultBad,
			fmt.Sprintf("Bad service result in browse: %v", err))
		return StatusServiceResultBad
	}
	if resp.ServiceResult.IsBad() {
		a.metrics.ServiceErrors.Add(1)
		a.sendBrowseError(msg, nil, StatusServiceResultBad,
			fmt.Sprintf("Bad service result in browse: %s", resp.ServiceResult))
		return StatusServiceResultBad
	}
	if len(resp.Results) == 0 {
		a.metrics.ServiceErrors.Add(1)
		a.sendBrowseError(msg, nil, StatusViewBrowseResultEmpty, "Empty browse response")
		return StatusViewBrowseResultEmpty
	}

	nodeIDUnknown := 0
	for i, result := range resp.Results {
		var srcNodeID NodeID
		srcBrowseName := ""
		if !browseNext && i < len(level.nodeIDs) {
			srcNodeID = level.nodeIDs[i]
			srcBrowseName = level.browseNames[i]
		}
		reqID := 0
		if !browseNext && i < len(level.reqIDs) {
			reqID = level.reqIDs[i]
		}

		path.push(srcNodeID, srcBrowseName)

		if result.StatusCode.IsBad() {
			if result.StatusCode == StatusBadNodeIdUnknown {
				nodeIDUnknown++
			}
			if nodeIDUnknown == len(resp.Results) {
				a.sendBrowseError(msg, &srcNodeID, StatusViewNodeIDUnknownAllResults,
					"Browse response: node id unknown for all results")
			} else {
				a.sendBrowseError(msg, &srcNodeID, StatusViewResultStatusCodeBad,
					result.StatusCode.String())
			}
			path.pop()
			continue
		}

		if !a.checkContinuationPoint(msg, &srcNodeID, &result) {
			path.pop()
			continue
		}
		if browseNext && len(result.References) == 0 {
			a.sendBrowseError(msg, &srcNodeID, StatusViewReferenceDataInvalid,
				"Browse-next result carries no references")
			path.pop()
			continue
		}

		next := &browseLevel{}
		for j := range result.References {
			ref := &result.References[j]
			if !a.validReference(msg, &srcNodeID, ref, direction) {
				continue
			}
			if path.contains(ref.BrowseName.Name) {
				a.logger.Debug("cycle cut: browse name already on current path",
					"browseName", ref.BrowseName.Name)
				continue
			}

			if views == nil {
				a.sendBrowseRecord(msg, reqID, &srcNodeID, ref, path)
			} else if ref.NodeClass == NodeClassView {
				*views = append(*views, viewNodeInfo{
					nodeID:     ref.NodeID.NodeID,
					browseName: ref.BrowseName.Name,
				})
			}

			if ref.NodeClass != NodeClassVariable {
				next.nodeIDs = append(next.nodeIDs, ref.NodeID.NodeID)
				next.browseNames = append(next.browseNames, ref.BrowseName.Name)
				next.reqIDs = append(next.reqIDs, reqID)
			}
		}

		if len(result.ContinuationPoint) > 0 {
			a.sendContinuationPoint(msg, reqID, &srcNodeID, result.ContinuationPoint, path)
		}

		if len(next.nodeIDs) > 0 {
			a.browse(s, msg, false, next, views, path)
		}
		path.pop()
	}
	return StatusOK
}

// checkContinuationPoint validates the continuation point of one browse
// result: its length must stay under the cap and a non-empty point
// requires references.
func (a *Adapter) checkContinuationPoint(msg *Message, srcNodeID *NodeID, result *BrowseResult) bool {
	if len(result.ContinuationPoint) >= maxContinuationPointBytes {
		a.sendBrowseError(msg, srcNodeID, StatusViewContinuationPointLong,
			"Continuation point length exceeds the limit")
		return false
	}
	if len(result.ContinuationPoint) > 0 && len(result.References) == 0 {
		a.sendBrowseError(msg, srcNodeID, StatusViewReferenceDataInvalid,
			"Continuation point without references")
		return false
	}
	return true
}

// validReference applies the per-reference contract checks. Every
// violation emits its own error message; siblings are unaffected.
func (a *Adapter) validReference(msg *Message, srcNodeID *NodeID, ref *ReferenceDescription, direction BrowseDirection) bool {
	valid := true
	if (direction == BrowseDirectionForward && !ref.IsForward) ||
		(direction == BrowseDirectionInverse && ref.IsForward) {
		a.sendBrowseError(msg, srcNodeID, StatusViewDirectionNotMatch,
			"Reference direction does not match the request")
		valid = false
	}
	if ref.BrowseName.Name == "" || len(ref.BrowseName.Name) >= maxBrowseNameLength {
		a.sendBrowseError(msg, srcNodeID, StatusViewBrowseNameInvalid,
			"Browse name is empty or too long")
		valid = false
	}
	if ref.NodeClass&browseNodeClassMask == 0 {
		a.sendBrowseError(msg, srcNodeID, StatusViewNodeClassInvalid,
			"Node class is outside the browse mask")
		valid = false
	}
	if ref.DisplayName.Text == "" || len(ref.DisplayName.Text) >= maxBrowseNameLength {
		a.sendBrowseError(msg, srcNodeID, StatusViewDisplayNameInvalid,
			"Display name is empty or too long")
		valid = false
	}
	if ref.NodeID.NodeID.IsNull() || ref.NodeID.ServerIndex != 0 {
		a.sendBrowseError(msg, srcNodeID, StatusViewNodeIDInvalid,
			"Target node id is null or remote")
		valid = false
	}
	if ref.ReferenceTypeID.IsNull() {
		a.sendBrowseError(msg, srcNodeID, StatusViewReferenceTypeIDInvalid,
			"Reference type id is null")
		valid = false
	}
	if (ref.NodeClass == NodeClassObject || ref.NodeClass == NodeClassVariable) &&
		ref.TypeDefinition.NodeID.IsNull() {
		a.sendBrowseError(msg, srcNodeID, StatusViewTypeDefinitionInvalid,
			"Type definition node id is null")
		valid = false
	}
	return valid
}

// referenceValueAlias renders the application-facing alias of a browsed
// node: "{ns;S;v=<n>}name" for string identifiers, "{ns;<T>}name"
// otherwise.
func referenceValueAlias(browseName string, nodeID NodeID, displayName LocalizedText) string {
	if nodeID.Type == NodeIDTypeString {
		if strings.HasPrefix(displayName.Text, "v=") {
			return fmt.Sprintf("{%d;S;%s}%s", nodeID.Namespace, displayName.Text, browseName)
		}
		return fmt.Sprintf("{%d;S;v=0}%s", nodeID.Namespace, browseName)
	}
	return fmt.Sprintf("{%d;%s}%s", nodeID.Namespace, nodeID.Type, browseName)
}

// sendBrowseRecord enqueues one browse response for an accepted
// reference, carrying its value alias and complete browse path.
func (a *Adapter) sendBrowseRecord(msg *Message, reqID int, srcNodeID *NodeID, ref *ReferenceDescription, path *browsePath) {
	browseName := ref.BrowseName.Name
	if ref.NodeID.NodeID.Type == NodeIDTypeString {
		browseName = ref.NodeID.NodeID.String
	}

	alias := referenceValueAlias(browseName, ref.NodeID.NodeID, ref.DisplayName)
	completePath := path.current() + "/" + alias

	result := &Message{
		ID:           msg.ID,
		Endpoint:     msg.Endpoint,
		Type:         BrowseResponse,
		Command:      msg.Command,
		BrowseRecord: &BrowseRecord{BrowseName: browseName},
		Responses: []*Response{{
			RequestID: reqID,
			NodeInfo:  &NodeInfo{NodeID: *srcNodeID, ValueAlias: alias},
			Type:      TypeString,
			Value:     NewValue(TypeString, completePath),
		}},
	}
	if err := a.enqueueMessage(result); err != nil {
		a.logger.Warn("failed to enqueue browse response", "err", err)
	}
}

// sendContinuationPoint surfaces a server continuation point together
// with the browse prefix captured at truncation time.
func (a *Adapter) sendContinuationPoint(msg *Message, reqID int, srcNodeID *NodeID, cp []byte, path *browsePath) {
	prefix := strings.TrimPrefix(path.current(), "/")
	point := make([]byte, len(cp))
	copy(point, cp)

	result := &Message{
		ID:       msg.ID,
		Endpoint: msg.Endpoint,
		Type:     BrowseResponse,
		Command:  msg.Command,
		ContinuationPoints: []*ContinuationPoint{{
			ContinuationPoint: point,
			BrowsePrefix:      prefix,
		}},
		Responses: []*Response{{
			RequestID: reqID,
			NodeInfo:  &NodeInfo{NodeID: *srcNodeID},
		}},
	}
	if err := a.enqueueMessage(result); err != nil {
		a.logger.Warn("failed to enqueue continuation point", "err", err)
	}
}

// sendBrowseError enqueues one error message for a browse violation.
func (a *Adapter) sendBrowseError(msg *Message, srcNodeID *NodeID, status Status, desc string) {
	errMsg := &Message{
		ID:       msg.ID,
		Endpoint: msg.Endpoint,
		Type:     ErrorResponse,
		Command:  msg.Command,
		Result:   &Result{Status: status, Description: desc},
		Responses: []*Response{{
			Type:  TypeString,
			Value: NewValue(TypeString, desc),
		}},
	}
	if srcNodeID != nil {
		errMsg.Responses[0].NodeInfo = &NodeInfo{NodeID: *srcNodeID}
	}
	if err := a.enqueueMessage(errMsg); err != nil {
		a.logger.Warn("failed to enqueue browse error", "err", err)
	}
}
