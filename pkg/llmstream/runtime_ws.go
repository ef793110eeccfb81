package llmstream

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// GenerationRequest is the JSON request frame sent once per invocation,
// mirroring LokutorTTS.StreamSynthesize's request shape (text/voice/lang)
// but carrying the fields spec.md §4.5 defines for the LLM Streaming
// Engine's input.
type GenerationRequest struct {
	Mode             string  `json:"mode"`
	PromptTemplate   string  `json:"prompt_template"`
	UserText         string  `json:"user_text"`
	ModelID          string  `json:"model_id"`
	MaxTokens        int     `json:"max_tokens,omitempty"`
	Temperature      float64 `json:"temperature,omitempty"`
	TopP             float64 `json:"top_p,omitempty"`
	SystemPromptAddl string  `json:"system_prompt_addl,omitempty"`
}

// RuntimeClient is a persistent connection to the local model runtime,
// grounded byte-for-byte in the teacher's LokutorTTS: connect once, reuse
// the connection, send one JSON request per call, read a sequence of text
// frames until an "EOS" or "ERR:"-prefixed sentinel. Audio binary frames
// become token text frames; everything else about the control flow is
// unchanged.
type RuntimeClient struct {
	host string

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewRuntimeClient builds a client targeting host (e.g. "localhost:8700").
func NewRuntimeClient(host string) *RuntimeClient {
	return &RuntimeClient{host: host}
}

func (c *RuntimeClient) getConn(ctx context.Context) (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return c.conn, nil
	}

	u := url.URL{Scheme: "ws", Host: c.host, Path: "/generate"}
	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("connect to model runtime: %w", err)
	}
	c.conn = conn
	return conn, nil
}

// Stream issues req and invokes onToken for each text token received until
// the runtime sends its end-of-stream sentinel. ctx cancellation (e.g. from
// ABORT_DICTATION) stops the read loop at the next token boundary.
func (c *RuntimeClient) Stream(ctx context.Context, req GenerationRequest, onToken func(string) error) error {
	conn, err := c.getConn(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := wsjson.Write(ctx, conn, req); err != nil {
		c.conn = nil
		conn.Close(websocket.StatusAbnormalClosure, "failed to write request")
		return fmt.Errorf("send generation request: %w", err)
	}

	for {
		messageType, payload, err := conn.Read(ctx)
		if err != nil {
			c.conn = nil
			conn.Close(websocket.StatusAbnormalClosure, "failed to read")
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read from model runtime: %w", err)
		}

		if messageType != websocket.MessageText {
			continue
		}

		msg := string(payload)
		if msg == "EOS" {
			return nil
		}
		if len(msg) >= 4 && msg[:4] == "ERR:" {
			return fmt.Errorf("model runtime error: %s", msg)
		}
		if err := onToken(msg); err != nil {
			return err
		}
	}
}

// Close releases the underlying connection, if any.
func (c *RuntimeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		err := c.conn.Close(websocket.StatusNormalClosure, "")
		c.conn = nil
		return err
	}
	return nil
}
