// Package rpc defines the wire contract of the podium.v1.SigningService gRPC
// service: method names, request messages and the JSON codec that carries
// them.
package rpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/alfredjeanlab/podium/internal/model"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "podium.v1.SigningService"

// Full method names.
const (
	MethodResolveToken    = "/" + ServiceName + "/ResolveToken"
	MethodSubmitSignature = "/" + ServiceName + "/SubmitSignature"
	MethodGetContract     = "/" + ServiceName + "/GetContract"
	MethodSendContract    = "/" + ServiceName + "/SendContract"
	MethodCancelContract  = "/" + ServiceName + "/CancelContract"
)

// TokenRequest addresses a signer token.
type TokenRequest struct {
	Token string `json:"token"`
}

// SubmitSignatureRequest carries a signature for the role bound to Token.
type SubmitSignatureRequest struct {
	Token     string               `json:"token"`
	Signature model.SignatureInput `json:"signature"`
}

// ContractRequest addresses a contract for an admin operation.
type ContractRequest struct {
	ContractID string `json:"contract_id"`
	Actor      string `json:"actor,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// CodecName is the gRPC content subtype for the signing service.
const CodecName = "json"

func init() {
	encoding.RegisterCodec(Codec{})
}

// Codec carries plain Go structs as JSON. Protobuf messages, such as those
// of the health service, are encoded with protojson.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error) {
	if m, ok := v.(proto.Message); ok {
		return protojson.Marshal(m)
	}
	return json.Marshal(v)
}

func (Codec) Unmarshal(data []byte, v any) error {
	if m, ok := v.(proto.Message); ok {
		return protojson.Unmarshal(data, m)
	}
	return json.Unmarshal(data, v)
}

func (Codec) Name() string { return CodecName }
