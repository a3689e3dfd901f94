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

// Package uaedge adapts an OPC UA stack into a high-level asynchronous
// client/server API: sessions keyed by endpoint, batched attribute access,
// recursive browsing and live data subscriptions delivered through a
// receive queue.
package uaedge

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NodeIDType represents the identifier type of a NodeID.
type NodeIDType uint8

// NodeID identifier types.
const (
	NodeIDTypeNumeric NodeIDType = iota
	NodeIDTypeString
	NodeIDTypeByteString
	NodeIDTypeGUID
)

// String returns the single-character form used in value aliases.
func (t NodeIDType) String() string {
	switch t {
	case NodeIDTypeNumeric:
		return "I"
	case NodeIDTypeString:
		return "S"
	case NodeIDTypeByteString:
		return "B"
	case NodeIDTypeGUID:
		return "G"
	default:
		return "?"
	}
}

// NodeID identifies a node in an OPC UA address space.
type NodeID struct {
	Type       NodeIDType
	Namespace  uint16
	Numeric    uint32
	String     string
	ByteString []byte
	GUID       uuid.UUID
}

// NewNumericNodeID creates a new numeric NodeID.
func NewNumericNodeID(namespace uint16, id uint32) NodeID {
	return NodeID{
		Type:      NodeIDTypeNumeric,
		Namespace: namespace,
		Numeric:   id,
	}
}

// NewStringNodeID creates a new string NodeID.
func NewStringNodeID(namespace uint16, id string) NodeID {
	return NodeID{
		Type:      NodeIDTypeString,
		Namespace: namespace,
		String:    id,
	}
}

// NewByteStringNodeID creates a new opaque NodeID.
func NewByteStringNodeID(namespace uint16, id []byte) NodeID {
	return NodeID{
		Type:       NodeIDTypeByteString,
		Namespace:  namespace,
		ByteString: id,
	}
}

// NewGUIDNodeID creates a new GUID NodeID.
func NewGUIDNodeID(namespace uint16, id uuid.UUID) NodeID {
	return NodeID{
		Type:      NodeIDTypeGUID,
		Namespace: namespace,
		GUID:      id,
	}
}

// IsNull reports whether the NodeID is the null node id.
func (n NodeID) IsNull() bool {
	switch n.Type {
	case NodeIDTypeNumeric:
		return n.Namespace == 0 && n.Numeric == 0
	case NodeIDTypeString:
		return n.String == ""
	case NodeIDTypeByteString:
		return len(n.ByteString) == 0
	case NodeIDTypeGUID:
		return n.GUID == uuid.Nil
	}
	return true
}

// Identifier returns the string form of the identifier part.
func (n NodeID) Identifier() string {
	switch n.Type {
	case NodeIDTypeNumeric:
		return fmt.Sprintf("%d", n.Numeric)
	case NodeIDTypeString:
		return n.String
	case NodeIDTypeByteString:
		return string(n.ByteString)
	case NodeIDTypeGUID:
		return n.GUID.String()
	}
	return ""
}

// Key returns the node id in the usual "ns=..;x=.." notation. It is
// unique per node and usable as a map key.
func (n NodeID) Key() string {
	switch n.Type {
	case NodeIDTypeNumeric:
		return fmt.Sprintf("ns=%d;i=%d", n.Namespace, n.Numeric)
	case NodeIDTypeString:
		return fmt.Sprintf("ns=%d;s=%s", n.Namespace, n.String)
	case NodeIDTypeByteString:
		return fmt.Sprintf("ns=%d;b=%s", n.Namespace, n.ByteString)
	case NodeIDTypeGUID:
		return fmt.Sprintf("ns=%d;g=%s", n.Namespace, n.GUID)
	}
	return "ns=0;i=0"
}

// ExpandedNodeID is a NodeID qualified with a server index.
type ExpandedNodeID struct {
	NodeID      NodeID
	ServerIndex uint32
}

// RootFolderID is the numeric identifier of the standard Root folder.
const RootFolderID uint32 = 84

// AttributeID represents an OPC UA attribute identifier.
type AttributeID uint32

// Attribute ids used by the adapter.
const (
	AttributeValue                   AttributeID = 13
	AttributeMinimumSamplingInterval AttributeID = 19
)

// NodeClass represents the class of an OPC UA node.
type NodeClass uint32

// OPC UA node classes.
const (
	NodeClassUnspecified   NodeClass = 0
	NodeClassObject        NodeClass = 1
	NodeClassVariable      NodeClass = 2
	NodeClassMethod        NodeClass = 4
	NodeClassObjectType    NodeClass = 8
	NodeClassVariableType  NodeClass = 16
	NodeClassReferenceType NodeClass = 32
	NodeClassDataType      NodeClass = 64
	NodeClassView          NodeClass = 128
)

// String returns the string representation of a NodeClass.
func (n NodeClass) String() string {
	switch n {
	case NodeClassObject:
		return "Object"
	case NodeClassVariable:
		return "Variable"
	case NodeClassMethod:
		return "Method"
	case NodeClassObjectType:
		return "ObjectType"
	case NodeClassVariableType:
		return "VariableType"
	case NodeClassReferenceType:
		return "ReferenceType"
	case NodeClassDataType:
		return "DataType"
	case NodeClassView:
		return "View"
	default:
		return "Unspecified"
	}
}

// Node class masks used while browsing.
const (
	browseNodeClassMask = NodeClassObject | NodeClassVariable |
		NodeClassView | NodeClassMethod
	viewNodeClassMask = NodeClassObject | NodeClassView
)

// BrowseDirection represents the direction to browse in the address space.
type BrowseDirection uint32

// Browse directions.
const (
	BrowseDirectionForward BrowseDirection = 0
	BrowseDirectionInverse BrowseDirection = 1
	BrowseDirectionBoth    BrowseDirection = 2
)

// TimestampsToReturn specifies which timestamps a service returns.
type TimestampsToReturn uint32

// Timestamps to return options.
const (
	TimestampsToReturnSource  TimestampsToReturn = 0
	TimestampsToReturnServer  TimestampsToReturn = 1
	TimestampsToReturnBoth    TimestampsToReturn = 2
	TimestampsToReturnNeither TimestampsToReturn = 3
)

// TypeID represents an OPC UA built-in type.
type TypeID uint8

// OPC UA built-in types.
const (
	TypeNull          TypeID = 0
	TypeBoolean       TypeID = 1
	TypeSByte         TypeID = 2
	TypeByte          TypeID = 3
	TypeInt16         TypeID = 4
	TypeUInt16        TypeID = 5
	TypeInt32         TypeID = 6
	TypeUInt32        TypeID = 7
	TypeInt64         TypeID = 8
	TypeUInt64        TypeID = 9
	TypeFloat         TypeID = 10
	TypeDouble        TypeID = 11
	TypeString        TypeID = 12
	TypeDateTime      TypeID = 13
	TypeGUID          TypeID = 14
	TypeByteString    TypeID = 15
	TypeXMLElement    TypeID = 16
	TypeNodeID        TypeID = 17
	TypeQualifiedName TypeID = 20
	TypeLocalizedText TypeID = 21
)

// QualifiedName represents an OPC UA QualifiedName.
type QualifiedName struct {
	NamespaceIndex uint16
	Name           string
}

// LocalizedText represents an OPC UA LocalizedText.
type LocalizedText struct {
	Locale string
	Text   string
}

// Variant represents an OPC UA Variant as decoded by the stack. Scalar
// values carry a single Go value in Value; array values carry a slice of
// the element type and set IsArray.
type Variant struct {
	Type    TypeID
	IsArray bool
	Value   interface{}
}

// Len returns the array length, or 0 for scalar variants.
func (v *Variant) Len() int {
	if v == nil || !v.IsArray {
		return 0
	}
	switch a := v.Value.(type) {
	case []bool:
		return len(a)
	case []int8:
		return len(a)
	case []byte:
		return len(a)
	case []int16:
		return len(a)
	case []uint16:
		return len(a)
	case []int32:
		return len(a)
	case []uint32:
		return len(a)
	case []int64:
		return len(a)
	case []uint64:
		return len(a)
	case []float32:
		return len(a)
	case []float64:
		return len(a)
	case []string:
		return len(a)
	case [][]byte:
		return len(a)
	case []time.Time:
		return len(a)
	case []uuid.UUID:
		return len(a)
	case []LocalizedText:
		return len(a)
	case []QualifiedName:
		return len(a)
	case []NodeID:
		return len(a)
	}
	return 0
}

// DataValue represents an OPC UA DataValue.
type DataValue struct {
	Value              *Variant
	StatusCode         StatusCode
	SourceTimestamp    time.Time
	ServerTimestamp    time.Time
	HasServerTimestamp bool
}

// ReadValueID names a node attribute to read.
type ReadValueID struct {
	NodeID      NodeID
	AttributeID AttributeID
	IndexRange  string
}

// WriteValue names a node attribute and the value to write to it.
type WriteValue struct {
	NodeID      NodeID
	AttributeID AttributeID
	Value       DataValue
}

// BrowseDescription describes what to browse from a node.
type BrowseDescription struct {
	NodeID          NodeID
	BrowseDirection BrowseDirection
	ReferenceTypeID NodeID
	IncludeSubtypes bool
	NodeClassMask   NodeClass
	ResultMask      uint32
}

// ReferenceDescription describes one reference returned from a browse.
type ReferenceDescription struct {
	ReferenceTypeID NodeID
	IsForward       bool
	NodeID          ExpandedNodeID
	BrowseName      QualifiedName
	DisplayName     LocalizedText
	NodeClass       NodeClass
	TypeDefinition  ExpandedNodeID
}

// BrowseResult contains the stack-level result of browsing one node.
type BrowseResult struct {
	StatusCode        StatusCode
	ContinuationPoint []byte
	References        []ReferenceDescription
}

// ApplicationType represents the type of an OPC UA application.
type ApplicationType uint32

// Application types.
const (
	ApplicationTypeServer          ApplicationType = 0
	ApplicationTypeClient          ApplicationType = 1
	ApplicationTypeClientAndServer ApplicationType = 2
	ApplicationTypeDiscoveryServer ApplicationType = 3
)

// ApplicationDescription describes an OPC UA application.
type ApplicationDescription struct {
	ApplicationURI      string
	ProductURI          string
	ApplicationName     LocalizedText
	ApplicationType     ApplicationType
	GatewayServerURI    string
	DiscoveryProfileURI string
	DiscoveryURLs       []string
}

// EndpointDescription describes an OPC UA endpoint.
type EndpointDescription struct {
	EndpointURL         string
	Server              ApplicationDescription
	SecurityMode        uint32
	SecurityPolicyURI   string
	TransportProfileURI string
	SecurityLevel       uint8
}

// MonitoringMode represents the monitoring mode of a monitored item.
type MonitoringMode uint32

// Monitoring modes.
const (
	MonitoringModeDisabled  MonitoringMode = 0
	MonitoringModeSampling  MonitoringMode = 1
	MonitoringModeReporting MonitoringMode = 2
)

// SubscriptionParameters carries the caller's subscription settings.
type SubscriptionParameters struct {
	PublishingInterval         float64
	LifetimeCount              uint32
	MaxKeepAliveCount          uint32
	MaxNotificationsPerPublish uint32
	Priority                   uint8
	PublishingEnabled          bool
}

// MonitoringParameters carries the settings of one monitored item.
type MonitoringParameters struct {
	ClientHandle     uint32
	SamplingInterval float64
	QueueSize        uint32
	DiscardOldest    bool
}
