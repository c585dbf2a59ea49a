package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protodelim"
	"google.golang.org/protobuf/types/known/structpb"
)

// MethodCall is one fire-and-forget invocation sent to the UI engine.
type MethodCall struct {
	Method string          `json:"method"`
	Args   json.RawMessage `json:"args,omitempty"`
}

// NewMethodCall marshals args into a call.
func NewMethodCall(method string, args any) (MethodCall, error) {
	call := MethodCall{Method: method}
	if args != nil {
		data, err := json.Marshal(args)
		if err != nil {
			return MethodCall{}, fmt.Errorf("failed to marshal %s args: %w", method, err)
		}
		call.Args = data
	}
	return call, nil
}

// Codec frames method calls on a stream.
type Codec interface {
	Name() string
	Encode(w io.Writer, call MethodCall) error
	NewDecoder(r io.Reader) Decoder
}

// Decoder reads successive calls from a stream.
type Decoder interface {
	Decode() (MethodCall, error)
}

// Codec names accepted by CodecByName.
const (
	CodecJSON  = "json"
	CodecProto = "proto"
)

// CodecByName returns the codec registered under name.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", CodecJSON:
		return JSONCodec{}, nil
	case CodecProto:
		return ProtoCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

// JSONCodec writes one JSON object per line.
type JSONCodec struct{}

func (JSONCodec) Name() string { return CodecJSON }

func (JSONCodec) Encode(w io.Writer, call MethodCall) error {
	data, err := json.Marshal(call)
	if err != nil {
		return fmt.Errorf("failed to marshal method call: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func (JSONCodec) NewDecoder(r io.Reader) Decoder {
	return &jsonDecoder{reader: bufio.NewReader(r)}
}

type jsonDecoder struct {
	reader *bufio.Reader
}

func (d *jsonDecoder) Decode() (MethodCall, error) {
	line, err := d.reader.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(line) > 0 {
			err = io.ErrUnexpectedEOF
		}
		return MethodCall{}, err
	}
	var call MethodCall
	if err := json.Unmarshal(line, &call); err != nil {
		return MethodCall{}, fmt.Errorf("failed to parse method call: %w", err)
	}
	return call, nil
}

// ProtoCodec writes varint length-delimited google.protobuf.Struct
// messages with "method" and "args" fields.
type ProtoCodec struct{}

func (ProtoCodec) Name() string { return CodecProto }

func (ProtoCodec) Encode(w io.Writer, call MethodCall) error {
	fields := map[string]any{"method": call.Method}
	if len(call.Args) > 0 {
		var args any
		if err := json.Unmarshal(call.Args, &args); err != nil {
			return fmt.Errorf("failed to decode %s args: %w", call.Method, err)
		}
		fields["args"] = args
	}
	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return fmt.Errorf("failed to build %s frame: %w", call.Method, err)
	}
	_, err = protodelim.MarshalTo(w, msg)
	return err
}

func (ProtoCodec) NewDecoder(r io.Reader) Decoder {
	return &protoDecoder{reader: bufio.NewReader(r)}
}

type protoDecoder struct {
	reader *bufio.Reader
}

func (d *protoDecoder) Decode() (MethodCall, error) {
	var msg structpb.Struct
	if err := protodelim.UnmarshalFrom(d.reader, &msg); err != nil {
		return MethodCall{}, err
	}

	call := MethodCall{Method: msg.GetFields()["method"].GetStringValue()}
	if args, ok := msg.GetFields()["args"]; ok {
		data, err := json.Marshal(args.AsInterface())
		if err != nil {
			return MethodCall{}, fmt.Errorf("failed to re-encode %s args: %w", call.Method, err)
		}
		call.Args = data
	}
	return call, nil
}
