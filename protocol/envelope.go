package protocol

import (
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"
)

// WireVersion tags every envelope. Peers reject envelopes with another
// version instead of guessing at their layout.
const WireVersion = 1

var (
	// ErrVersion is returned for envelopes written by an incompatible peer.
	ErrVersion = errors.New("protocol: envelope version mismatch")
	// ErrUnknownKind is returned when a command kind was never registered.
	ErrUnknownKind = errors.New("protocol: unknown command kind")
	// ErrEnvelopeType is returned when an envelope of the wrong shape arrives.
	ErrEnvelopeType = errors.New("protocol: unexpected envelope type")
)

const (
	typeCommand    = "cmd"
	typeInitialize = "init"
)

// RemoteCommand is a command injected from outside the host process.
type RemoteCommand struct {
	Client ClientIndex
	Cmd    Cmd
}

// InitializeClient is the handshake the host sends on a new session stream
// so the remote client learns its own index.
type InitializeClient struct {
	Client ClientIndex
}

type envelope struct {
	Version uint8              `msgpack:"v"`
	Type    string             `msgpack:"t"`
	Client  ClientIndex        `msgpack:"c"`
	Kind    string             `msgpack:"k,omitempty"`
	Payload msgpack.RawMessage `msgpack:"p,omitempty"`
}

// EncodeRemoteCommand serializes rc.
func EncodeRemoteCommand(rc RemoteCommand) ([]byte, error) {
	if rc.Cmd == nil {
		return nil, errors.New("protocol: remote command without cmd")
	}
	payload, err := msgpack.Marshal(rc.Cmd)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", rc.Cmd.Kind(), err)
	}
	return msgpack.Marshal(envelope{
		Version: WireVersion,
		Type:    typeCommand,
		Client:  rc.Client,
		Kind:    rc.Cmd.Kind(),
		Payload: payload,
	})
}

// DecodeRemoteCommand parses one RemoteCommand envelope.
func DecodeRemoteCommand(data []byte) (RemoteCommand, error) {
	var env envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return RemoteCommand{}, fmt.Errorf("decode envelope: %w", err)
	}
	if err := env.check(typeCommand); err != nil {
		return RemoteCommand{}, err
	}
	t, ok := lookup(env.Kind)
	if !ok {
		return RemoteCommand{}, fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
	}
	v := reflect.New(t)
	if len(env.Payload) > 0 {
		if err := msgpack.Unmarshal(env.Payload, v.Interface()); err != nil {
			return RemoteCommand{}, fmt.Errorf("decode %s payload: %w", env.Kind, err)
		}
	}
	return RemoteCommand{Client: env.Client, Cmd: v.Elem().Interface().(Cmd)}, nil
}

// WriteRemoteCommand writes rc to w.
func WriteRemoteCommand(w io.Writer, rc RemoteCommand) error {
	data, err := EncodeRemoteCommand(rc)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// ReadRemoteCommand reads r to EOF and decodes the single envelope it holds.
// The command socket carries one envelope per connection, so the length is
// implied by the connection closing.
func ReadRemoteCommand(r io.Reader) (RemoteCommand, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return RemoteCommand{}, err
	}
	return DecodeRemoteCommand(data)
}

// WriteInitializeClient writes the session handshake to w.
func WriteInitializeClient(w io.Writer, ic InitializeClient) error {
	data, err := msgpack.Marshal(envelope{
		Version: WireVersion,
		Type:    typeInitialize,
		Client:  ic.Client,
	})
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// ReadInitializeClient decodes the session handshake from r. Terminal
// output follows the handshake on the same stream, so r should be an
// io.ByteScanner (a *bufio.Reader) that the caller keeps reading from;
// otherwise the decoder may buffer bytes past the envelope.
func ReadInitializeClient(r io.Reader) (InitializeClient, error) {
	var env envelope
	if err := msgpack.NewDecoder(r).Decode(&env); err != nil {
		return InitializeClient{}, fmt.Errorf("decode handshake: %w", err)
	}
	if err := env.check(typeInitialize); err != nil {
		return InitializeClient{}, err
	}
	return InitializeClient{Client: env.Client}, nil
}

func (e envelope) check(want string) error {
	if e.Version != WireVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrVersion, e.Version, WireVersion)
	}
	if e.Type != want {
		return fmt.Errorf("%w: got %q, want %q", ErrEnvelopeType, e.Type, want)
	}
	return nil
}
