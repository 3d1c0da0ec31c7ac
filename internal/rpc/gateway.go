// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package rpc

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rapidaai/rialto/internal/model"
	"github.com/rapidaai/rialto/internal/player"
	"github.com/rapidaai/rialto/internal/session"
	"github.com/rapidaai/rialto/internal/sessionstore"
	"github.com/rapidaai/rialto/internal/webaudio"
	"github.com/rapidaai/rialto/pkg/commons"
)

// Gateway executes command envelopes against the session registry and
// serves event streams from the Broker. One Gateway serves every session.
type Gateway struct {
	logger   commons.Logger
	registry *session.Registry
	broker   *Broker
}

// NewGateway constructs the Gateway.
func NewGateway(logger commons.Logger, registry *session.Registry, broker *Broker) *Gateway {
	if logger == nil {
		logger = commons.NewNoopLogger()
	}
	return &Gateway{logger: logger, registry: registry, broker: broker}
}

// Execute runs one command envelope and replies {ok|fail} plus matched
// response fields. Command failures, misuse included, are in-band
// envelope replies, not transport errors.
func (g *Gateway) Execute(ctx context.Context, cmd *structpb.Struct) (*structpb.Struct, error) {
	name := getString(cmd, fieldCommand)
	resp, err := g.dispatch(ctx, name, cmd)
	if err != nil {
		g.logger.Debugw("command failed", "command", name, "err", err)
		return failResponse(err), nil
	}
	return resp, nil
}

// Events streams the event envelope set for the session named in the
// request ("" subscribes to every session) until the client goes away.
func (g *Gateway) Events(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	sessionID := getString(req, fieldSessionID)
	events, cancel := g.broker.Subscribe(sessionID)
	defer cancel()

	for {
		select {
		case <-stream.Context().Done():
			return stream.Context().Err()
		case evt := <-events:
			if err := stream.Send(evt); err != nil {
				return err
			}
		}
	}
}

func (g *Gateway) dispatch(ctx context.Context, name string, cmd *structpb.Struct) (*structpb.Struct, error) {
	switch name {
	// --- session lifecycle ---
	case "createSession":
		return g.createSession(ctx, cmd)
	case "destroySession":
		if err := g.registry.DestroySession(ctx, getString(cmd, fieldSessionID)); err != nil {
			return nil, err
		}
		return okResponse(nil)
	case "getSharedMemory":
		return g.getSharedMemory(cmd)

	// --- generic player commands ---
	case "load":
		return g.load(ctx, cmd)
	case "attachSource":
		return g.attachSource(ctx, cmd)
	case "removeSource":
		return g.removeSource(cmd)
	case "allSourcesAttached":
		return g.withPlayer(cmd, func(p *player.GenericPlayer) error { return p.AllSourcesAttached() })
	case "play":
		return g.play(ctx, cmd)
	case "pause":
		return g.withPlayer(cmd, func(p *player.GenericPlayer) error { return p.Pause() })
	case "stop":
		return g.stop(ctx, cmd)
	case "setPosition":
		return g.withPlayer(cmd, func(p *player.GenericPlayer) error {
			return p.SetPosition(getDuration(cmd, "position"))
		})
	case "getPosition":
		return g.getPosition(cmd)
	case "setPlaybackRate":
		return g.withPlayer(cmd, func(p *player.GenericPlayer) error {
			return p.SetPlaybackRate(getFloat(cmd, "rate"))
		})
	case "setVideoWindow":
		return g.setVideoWindow(cmd)
	case "setVolume":
		return g.withPlayer(cmd, func(p *player.GenericPlayer) error {
			return p.SetVolume(getFloat(cmd, "volume"))
		})
	case "getVolume":
		return g.getVolume(cmd)
	case "setMute":
		return g.withPlayer(cmd, func(p *player.GenericPlayer) error {
			return p.SetMute(getBool(cmd, "mute"))
		})
	case "getMute":
		return g.getMute(cmd)
	case "renderFrame":
		return g.withPlayer(cmd, func(p *player.GenericPlayer) error { return p.RenderFrame() })
	case "flush":
		return g.flush(cmd)
	case "setSourcePosition":
		return g.setSourcePosition(cmd)
	case "processAudioGap":
		return g.withPlayer(cmd, func(p *player.GenericPlayer) error {
			return p.ProcessAudioGap(
				getDuration(cmd, "position"),
				getDuration(cmd, "duration"),
				getBool(cmd, "discontinuity"),
				getBool(cmd, "isAudioAac"),
			)
		})
	case "setImmediateOutput":
		return g.setImmediateOutput(cmd)
	case "setLowLatency":
		return g.withPlayer(cmd, func(p *player.GenericPlayer) error {
			return p.SetLowLatency(getBool(cmd, "lowLatency"))
		})
	case "getImmediateOutput":
		return g.getImmediateOutput(cmd)
	case "getStats":
		return g.getStats(cmd)
	case "haveData":
		return g.haveData(cmd)

	// --- web-audio commands ---
	case "createWebAudioPlayer":
		return g.createWebAudioPlayer(ctx, cmd)
	case "destroyWebAudioPlayer":
		if err := g.registry.DestroyWebAudioPlayer(ctx, getString(cmd, fieldSessionID)); err != nil {
			return nil, err
		}
		return okResponse(nil)
	case "webAudioPlay":
		return g.withWebAudio(cmd, func(p *webaudio.Player) error { return p.Play() })
	case "webAudioPause":
		return g.withWebAudio(cmd, func(p *webaudio.Player) error { return p.Pause() })
	case "webAudioSetEos":
		return g.withWebAudio(cmd, func(p *webaudio.Player) error { return p.SetEos() })
	case "webAudioGetBufferAvailable":
		return g.webAudioGetBufferAvailable(cmd)
	case "webAudioGetBufferDelay":
		return g.webAudioGetBufferDelay(cmd)
	case "webAudioWriteBuffer":
		return g.webAudioWriteBuffer(cmd)
	case "webAudioGetDeviceInfo":
		return g.webAudioGetDeviceInfo(cmd)
	case "webAudioSetVolume":
		return g.withWebAudio(cmd, func(p *webaudio.Player) error {
			return p.SetVolume(getFloat(cmd, "volume"))
		})
	case "webAudioGetVolume":
		return g.webAudioGetVolume(cmd)

	default:
		return nil, fmt.Errorf("rpc: unknown command %q", name)
	}
}

func (g *Gateway) player(cmd *structpb.Struct) (*player.GenericPlayer, error) {
	id := getString(cmd, fieldSessionID)
	p, ok := g.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", session.ErrSessionNotFound, id)
	}
	return p, nil
}

func (g *Gateway) withPlayer(cmd *structpb.Struct, fn func(p *player.GenericPlayer) error) (*structpb.Struct, error) {
	p, err := g.player(cmd)
	if err != nil {
		return nil, err
	}
	if err := fn(p); err != nil {
		return nil, err
	}
	return okResponse(nil)
}

func (g *Gateway) webAudio(cmd *structpb.Struct) (*webaudio.Player, error) {
	id := getString(cmd, fieldSessionID)
	p, ok := g.registry.GetWebAudio(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", session.ErrSessionNotFound, id)
	}
	return p, nil
}

func (g *Gateway) withWebAudio(cmd *structpb.Struct, fn func(p *webaudio.Player) error) (*structpb.Struct, error) {
	p, err := g.webAudio(cmd)
	if err != nil {
		return nil, err
	}
	if err := fn(p); err != nil {
		return nil, err
	}
	return okResponse(nil)
}

func (g *Gateway) createSession(ctx context.Context, cmd *structpb.Struct) (*structpb.Struct, error) {
	req := createSessionRequest{MaxWidth: getInt(cmd, "maxWidth"), MaxHeight: getInt(cmd, "maxHeight")}
	if err := checkRequest(req); err != nil {
		return nil, err
	}
	id, err := g.registry.CreateSession(ctx, req.MaxWidth, req.MaxHeight)
	if err != nil {
		return nil, err
	}
	return okResponse(map[string]interface{}{fieldSessionID: id})
}

func (g *Gateway) getSharedMemory(cmd *structpb.Struct) (*structpb.Struct, error) {
	p, err := g.player(cmd)
	if err != nil {
		return nil, err
	}
	region := p.SharedMemory()
	return okResponse(map[string]interface{}{
		"fd":          int(region.FD()),
		"totalLength": region.TotalLength(),
	})
}

func (g *Gateway) load(ctx context.Context, cmd *structpb.Struct) (*structpb.Struct, error) {
	req := loadRequest{
		SessionID: getString(cmd, fieldSessionID),
		MimeType:  getString(cmd, "mimeType"),
		URL:       getString(cmd, "url"),
	}
	if err := checkRequest(req); err != nil {
		return nil, err
	}
	p, err := g.player(cmd)
	if err != nil {
		return nil, err
	}
	if err := p.Load(req.MimeType, req.URL); err != nil {
		return nil, err
	}
	g.registry.NoteStatus(ctx, req.SessionID, sessionstore.StatusCreated, "loaded "+req.MimeType)
	return okResponse(nil)
}

func (g *Gateway) attachSource(ctx context.Context, cmd *structpb.Struct) (*structpb.Struct, error) {
	p, err := g.player(cmd)
	if err != nil {
		return nil, err
	}
	src, err := decodeMediaSource(getStruct(cmd, "source"))
	if err != nil {
		return nil, err
	}
	if err := p.AttachSource(src, getBool(cmd, "switchSource")); err != nil {
		return nil, err
	}
	g.registry.NoteStatus(ctx, getString(cmd, fieldSessionID), sessionstore.StatusAttached, src.MimeType)
	return okResponse(map[string]interface{}{"sourceId": strings.ToLower(src.Type.String())})
}

func (g *Gateway) removeSource(cmd *structpb.Struct) (*structpb.Struct, error) {
	p, err := g.player(cmd)
	if err != nil {
		return nil, err
	}
	t := model.SourceTypeFromID(getString(cmd, "sourceId"))
	if t == model.MediaSourceTypeUnknown {
		return nil, fmt.Errorf("rpc: unknown source id %q", getString(cmd, "sourceId"))
	}
	if err := p.RemoveSource(t); err != nil {
		return nil, err
	}
	return okResponse(nil)
}

func (g *Gateway) play(ctx context.Context, cmd *structpb.Struct) (*structpb.Struct, error) {
	p, err := g.player(cmd)
	if err != nil {
		return nil, err
	}
	if err := p.Play(); err != nil {
		return nil, err
	}
	g.registry.NoteStatus(ctx, getString(cmd, fieldSessionID), sessionstore.StatusPlaying, "")
	return okResponse(nil)
}

func (g *Gateway) stop(ctx context.Context, cmd *structpb.Struct) (*structpb.Struct, error) {
	p, err := g.player(cmd)
	if err != nil {
		return nil, err
	}
	if err := p.Stop(); err != nil {
		return nil, err
	}
	g.registry.NoteStatus(ctx, getString(cmd, fieldSessionID), sessionstore.StatusStopped, "")
	return okResponse(nil)
}

func (g *Gateway) getPosition(cmd *structpb.Struct) (*structpb.Struct, error) {
	p, err := g.player(cmd)
	if err != nil {
		return nil, err
	}
	pos, ok := p.GetPosition()
	if !ok {
		return nil, fmt.Errorf("rpc: position unavailable")
	}
	return okResponse(map[string]interface{}{"position": pos.Nanoseconds()})
}

func (g *Gateway) setVideoWindow(cmd *structpb.Struct) (*structpb.Struct, error) {
	req := videoWindowRequest{
		X: getInt(cmd, "x"), Y: getInt(cmd, "y"),
		W: getInt(cmd, "width"), H: getInt(cmd, "height"),
	}
	if err := checkRequest(req); err != nil {
		return nil, err
	}
	p, err := g.player(cmd)
	if err != nil {
		return nil, err
	}
	if err := p.SetVideoWindow(req.X, req.Y, req.W, req.H); err != nil {
		return nil, err
	}
	return okResponse(nil)
}

func (g *Gateway) getVolume(cmd *structpb.Struct) (*structpb.Struct, error) {
	p, err := g.player(cmd)
	if err != nil {
		return nil, err
	}
	volume, ok := p.GetVolume()
	if !ok {
		return nil, fmt.Errorf("rpc: volume unavailable")
	}
	return okResponse(map[string]interface{}{"volume": volume})
}

func (g *Gateway) getMute(cmd *structpb.Struct) (*structpb.Struct, error) {
	p, err := g.player(cmd)
	if err != nil {
		return nil, err
	}
	mute, ok := p.GetMute()
	if !ok {
		return nil, fmt.Errorf("rpc: mute unavailable")
	}
	return okResponse(map[string]interface{}{"mute": mute})
}

func (g *Gateway) flush(cmd *structpb.Struct) (*structpb.Struct, error) {
	p, err := g.player(cmd)
	if err != nil {
		return nil, err
	}
	t := model.SourceTypeFromID(getString(cmd, "sourceId"))
	if err := p.Flush(t, getBool(cmd, "resetTime")); err != nil {
		return nil, err
	}
	return okResponse(nil)
}

func (g *Gateway) setSourcePosition(cmd *structpb.Struct) (*structpb.Struct, error) {
	p, err := g.player(cmd)
	if err != nil {
		return nil, err
	}
	t := model.SourceTypeFromID(getString(cmd, "sourceId"))
	err = p.SetSourcePosition(
		t,
		getDuration(cmd, "position"),
		getBool(cmd, "resetTime"),
		getFloat(cmd, "appliedRate"),
		getDuration(cmd, "stopPosition"),
	)
	if err != nil {
		return nil, err
	}
	return okResponse(nil)
}

func (g *Gateway) setImmediateOutput(cmd *structpb.Struct) (*structpb.Struct, error) {
	p, err := g.player(cmd)
	if err != nil {
		return nil, err
	}
	t := model.SourceTypeFromID(getString(cmd, "sourceId"))
	if err := p.SetImmediateOutput(t, getBool(cmd, "immediateOutput")); err != nil {
		return nil, err
	}
	return okResponse(nil)
}

func (g *Gateway) getImmediateOutput(cmd *structpb.Struct) (*structpb.Struct, error) {
	p, err := g.player(cmd)
	if err != nil {
		return nil, err
	}
	immediate, err := p.GetImmediateOutput()
	if err != nil {
		return nil, err
	}
	return okResponse(map[string]interface{}{"immediateOutput": immediate})
}

func (g *Gateway) getStats(cmd *structpb.Struct) (*structpb.Struct, error) {
	p, err := g.player(cmd)
	if err != nil {
		return nil, err
	}
	stats, err := p.GetStats()
	if err != nil {
		return nil, err
	}
	return okResponse(map[string]interface{}{
		"rendered": stats.Rendered,
		"dropped":  stats.Dropped,
	})
}

func (g *Gateway) haveData(cmd *structpb.Struct) (*structpb.Struct, error) {
	req := haveDataRequest{
		SessionID: getString(cmd, fieldSessionID),
		RequestID: getString(cmd, "requestId"),
		NumFrames: getInt(cmd, "numFrames"),
	}
	if err := checkRequest(req); err != nil {
		return nil, err
	}
	p, err := g.player(cmd)
	if err != nil {
		return nil, err
	}
	status, err := haveDataStatusFromString(getString(cmd, "status"))
	if err != nil {
		return nil, err
	}
	t := model.SourceTypeFromID(getString(cmd, "sourceId"))
	segments := decodeSegments(getList(cmd, "segments"), t)
	if err := p.HaveData(status, req.NumFrames, req.RequestID, segments); err != nil {
		return nil, err
	}
	return okResponse(nil)
}

func (g *Gateway) createWebAudioPlayer(ctx context.Context, cmd *structpb.Struct) (*structpb.Struct, error) {
	req := webAudioCreateRequest{
		PCMRate:     getInt(cmd, "pcmRate"),
		PCMChannels: getInt(cmd, "pcmChannels"),
		SampleSize:  getInt(cmd, "pcmSampleSize"),
		MimeType:    getString(cmd, "mimeType"),
		Priority:    getInt(cmd, "priority"),
	}
	if err := checkRequest(req); err != nil {
		return nil, err
	}
	pcm := webaudio.PCMConfig{
		Rate:        req.PCMRate,
		Channels:    req.PCMChannels,
		SampleSize:  req.SampleSize,
		IsBigEndian: getBool(cmd, "isBigEndian"),
		IsSigned:    getBool(cmd, "isSigned"),
		IsFloat:     getBool(cmd, "isFloat"),
	}
	id, err := g.registry.CreateWebAudioPlayer(ctx, pcm, req.MimeType, req.Priority)
	if err != nil {
		return nil, err
	}
	return okResponse(map[string]interface{}{fieldSessionID: id})
}

func (g *Gateway) webAudioGetBufferAvailable(cmd *structpb.Struct) (*structpb.Struct, error) {
	p, err := g.webAudio(cmd)
	if err != nil {
		return nil, err
	}
	info, frames := p.GetBufferAvailable()
	return okResponse(map[string]interface{}{
		"availableFrames": frames,
		"shmInfo": map[string]interface{}{
			"offsetMain": info.OffsetMain,
			"lengthMain": info.LengthMain,
			"offsetWrap": info.OffsetWrap,
			"lengthWrap": info.LengthWrap,
		},
	})
}

func (g *Gateway) webAudioGetBufferDelay(cmd *structpb.Struct) (*structpb.Struct, error) {
	p, err := g.webAudio(cmd)
	if err != nil {
		return nil, err
	}
	return okResponse(map[string]interface{}{"delayFrames": p.GetBufferDelay()})
}

func (g *Gateway) webAudioWriteBuffer(cmd *structpb.Struct) (*structpb.Struct, error) {
	p, err := g.webAudio(cmd)
	if err != nil {
		return nil, err
	}
	written, err := p.WriteBuffer(getBytes(cmd, "main"), getBytes(cmd, "wrap"))
	if err != nil {
		return nil, err
	}
	return okResponse(map[string]interface{}{"bytesWritten": written})
}

func (g *Gateway) webAudioGetDeviceInfo(cmd *structpb.Struct) (*structpb.Struct, error) {
	p, err := g.webAudio(cmd)
	if err != nil {
		return nil, err
	}
	info := p.GetDeviceInfo()
	return okResponse(map[string]interface{}{
		"maximumFrames":       info.MaximumFrames,
		"preferredFrames":     info.PreferredFrames,
		"supportDeferredPlay": info.SupportDeferredPlay,
	})
}

func (g *Gateway) webAudioGetVolume(cmd *structpb.Struct) (*structpb.Struct, error) {
	p, err := g.webAudio(cmd)
	if err != nil {
		return nil, err
	}
	volume, ok := p.GetVolume()
	if !ok {
		return nil, fmt.Errorf("rpc: volume unavailable")
	}
	return okResponse(map[string]interface{}{"volume": volume})
}
