package payment

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

const EnvelopeVersion = 1

type GatewayOperation string

const (
	OperationCharge GatewayOperation = "charge"
	OperationVerify GatewayOperation = "verify"
)

// GatewayEnvelope wraps whatever the gateway returned so the stored audit trail
// survives changes in the gateway payload shape.
type GatewayEnvelope struct {
	Version       int              `json:"version"`
	Provider      string           `json:"provider"`
	Operation     GatewayOperation `json:"operation"`
	GatewayStatus string           `json:"gateway_status"`
	RawPayload    json.RawMessage  `json:"raw_payload"`
	ReceivedAt    time.Time        `json:"received_at"`
}

func (e GatewayEnvelope) JSON() (datatypes.JSON, error) {
	if e.Version == 0 {
		e.Version = EnvelopeVersion
	}
	if len(e.RawPayload) == 0 {
		e.RawPayload = json.RawMessage("null")
	}
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal gateway envelope: %w", err)
	}
	return datatypes.JSON(b), nil
}

func DecodeEnvelope(raw datatypes.JSON) (*GatewayEnvelope, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var env GatewayEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to decode gateway envelope: %w", err)
	}
	if env.Version > EnvelopeVersion {
		return nil, fmt.Errorf("unsupported gateway envelope version %d", env.Version)
	}
	return &env, nil
}
