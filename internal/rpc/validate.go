// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package rpc

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate backs the misuse checks: a malformed request
// replies failure with no state change.
var validate = validator.New()

type createSessionRequest struct {
	MaxWidth  int `validate:"gte=0"`
	MaxHeight int `validate:"gte=0"`
}

type loadRequest struct {
	SessionID string `validate:"required,uuid"`
	MimeType  string `validate:"required"`
	URL       string `validate:"required"`
}

type videoWindowRequest struct {
	X int `validate:"gte=0"`
	Y int `validate:"gte=0"`
	W int `validate:"gt=0"`
	H int `validate:"gt=0"`
}

type haveDataRequest struct {
	SessionID string `validate:"required,uuid"`
	RequestID string `validate:"required"`
	NumFrames int    `validate:"gte=0"`
}

type webAudioCreateRequest struct {
	PCMRate     int    `validate:"gt=0"`
	PCMChannels int    `validate:"gt=0,lte=8"`
	SampleSize  int    `validate:"oneof=8 16 24 32 64"`
	MimeType    string `validate:"required"`
	Priority    int    `validate:"gte=0"`
}

func checkRequest(req interface{}) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("rpc: invalid request: %w", err)
	}
	return nil
}
