// Copyright (c) 2025 BVK Chaitanya

package gobs

import (
	"fmt"
)

func NewByTypename(typename string) (any, error) {
	var v any
	switch typename {
	case "AccountData":
		v = new(AccountData)
	case "Credentials":
		v = new(Credentials)
	case "Instruments":
		v = new(Instruments)
	case "TradeRotation":
		v = new(TradeRotation)
	case "TradeJob":
		v = new(TradeJob)
	case "TradeRecord":
		v = new(TradeRecord)
	case "JobData":
		v = new(JobData)
	case "RunData":
		v = new(RunData)
	case "KeyValue":
		v = new(KeyValue)
	default:
		return nil, fmt.Errorf("unsupported type name %q", typename)
	}
	return v, nil
}
