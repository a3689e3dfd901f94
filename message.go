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

import "time"

// Command identifies the operation a request message asks for.
type Command int

// Request commands.
const (
	CmdRead Command = iota
	CmdReadSamplingInterval
	CmdWrite
	CmdBrowse
	CmdBrowseNext
	CmdBrowseViews
	CmdMethod
	CmdSub
)

// String returns the command name.
func (c Command) String() string {
	switch c {
	case CmdRead:
		return "read"
	case CmdReadSamplingInterval:
		return "read-sampling-interval"
	case CmdWrite:
		return "write"
	case CmdBrowse:
		return "browse"
	case CmdBrowseNext:
		return "browse-next"
	case CmdBrowseViews:
		return "browse-views"
	case CmdMethod:
		return "method"
	case CmdSub:
		return "subscription"
	default:
		return "unknown"
	}
}

// MessageType classifies an outbound message for dispatch.
type MessageType int

// Outbound message types.
const (
	GeneralResponse MessageType = iota
	BrowseResponse
	Report
	ErrorResponse
)

// String returns the message type name.
func (t MessageType) String() string {
	switch t {
	case GeneralResponse:
		return "general"
	case BrowseResponse:
		return "browse"
	case Report:
		return "report"
	case ErrorResponse:
		return "error"
	default:
		return "unknown"
	}
}

// SubRequestType identifies the subscription operation of a request.
type SubRequestType int

// Subscription operations.
const (
	CreateSub SubRequestType = iota
	ModifySub
	DeleteSub
	RepublishSub
)

// NodeInfo names the node a request or response refers to.
type NodeInfo struct {
	NodeID     NodeID
	ValueAlias string
	MethodName string
}

// SubRequest carries the subscription settings of one request.
type SubRequest struct {
	Type             SubRequestType
	Params           SubscriptionParameters
	SamplingInterval float64
	QueueSize        uint32
}

// MethodParams carries the method target and its ordered input
// arguments.
type MethodParams struct {
	ObjectID NodeID
	MethodID NodeID
	Inputs   []*Value
}

// Request addresses one node within a request message.
type Request struct {
	RequestID    int
	NodeInfo     *NodeInfo
	Value        *Value
	SubRequest   *SubRequest
	MethodParams *MethodParams
}

// Response carries the per-node outcome within a response message.
type Response struct {
	RequestID int
	NodeInfo  *NodeInfo
	Type      TypeID
	Value     *Value
}

// Result carries the adapter-level outcome of a message.
type Result struct {
	Status      Status
	Description string
}

// BrowseParameter carries the options of a browse request.
type BrowseParameter struct {
	Direction            BrowseDirection
	MaxReferencesPerNode uint32
}

// ContinuationPoint is an opaque server token for resuming a truncated
// browse, together with the browse prefix captured at truncation time.
type ContinuationPoint struct {
	ContinuationPoint []byte
	BrowsePrefix      string
}

// BrowseRecord is the application-visible result of one accepted browse
// reference.
type BrowseRecord struct {
	BrowseName string
}

// Message is the unit exchanged with the application: requests inbound,
// responses outbound through the receive queue.
type Message struct {
	ID                 uint32
	Endpoint           string
	Type               MessageType
	Command            Command
	Requests           []*Request
	Responses          []*Response
	Result             *Result
	BrowseParam        *BrowseParameter
	ContinuationPoints []*ContinuationPoint
	BrowseRecord       *BrowseRecord
	ServerTime         time.Time
}

// Request1 returns the first request of the message, or nil.
func (m *Message) Request1() *Request {
	if len(m.Requests) == 0 {
		return nil
	}
	return m.Requests[0]
}

// Device describes a discovered server endpoint set.
type Device struct {
	Address    string
	Port       uint16
	ServerName string
	Endpoints  []EndpointDescription
}

// ApplicationTypeMask selects which application types discovery accepts.
type ApplicationTypeMask uint8

// Application type mask bits.
const (
	ApplicationTypeMaskServer          ApplicationTypeMask = 1 << 0
	ApplicationTypeMaskClient          ApplicationTypeMask = 1 << 1
	ApplicationTypeMaskClientAndServer ApplicationTypeMask = 1 << 2
	ApplicationTypeMaskDiscoveryServer ApplicationTypeMask = 1 << 3

	ApplicationTypeMaskAll = ApplicationTypeMaskServer | ApplicationTypeMaskClient |
		ApplicationTypeMaskClientAndServer | ApplicationTypeMaskDiscoveryServer
)

// Supports reports whether the mask accepts the given application type.
func (m ApplicationTypeMask) Supports(t ApplicationType) bool {
	switch t {
	case ApplicationTypeServer:
		return m&ApplicationTypeMaskServer != 0
	case ApplicationTypeClient:
		return m&ApplicationTypeMaskClient != 0
	case ApplicationTypeClientAndServer:
		return m&ApplicationTypeMaskClientAndServer != 0
	case ApplicationTypeDiscoveryServer:
		return m&ApplicationTypeMaskDiscoveryServer != 0
	}
	return false
}
