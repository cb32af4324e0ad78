package mqtt

import (
	"encoding/json"
	"fmt"
	"strconv"

	"pulsemeter/internal/domain"
)

// EncodePayload renders the retained document, e.g. {"pulses":"50","power":"36.00"}.
func EncodePayload(sample domain.Sample) ([]byte, error) {
	return json.Marshal(domain.MessagePayload{
		Pulses: strconv.FormatUint(sample.Pulses, 10),
		Power:  strconv.FormatFloat(sample.Power, 'f', 2, 64),
	})
}

func DecodePayload(raw []byte) (pulses uint64, power float64, err error) {
	var p domain.MessagePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return 0, 0, fmt.Errorf("decode payload: %w", err)
	}

	pulses, err = strconv.ParseUint(p.Pulses, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("decode pulses: %w", err)
	}

	power, err = strconv.ParseFloat(p.Power, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("decode power: %w", err)
	}

	return pulses, power, nil
}
