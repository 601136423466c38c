package loginsvc

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	fieldClientID   protowire.Number = 1
	fieldAppVersion protowire.Number = 2

	fieldAuthHost protowire.Number = 1
	fieldAuthPort protowire.Number = 2
)

// QueryLoginServerInfo is the single request kind the Login service accepts
// (spec.md §4.2): a client identity string and its numeric application
// version.
type QueryLoginServerInfo struct {
	ClientID   string
	AppVersion uint32
}

func (r *QueryLoginServerInfo) Marshal() ([]byte, error) {
	var buf []byte
	buf = protowire.AppendTag(buf, fieldClientID, protowire.BytesType)
	buf = protowire.AppendString(buf, r.ClientID)
	buf = protowire.AppendTag(buf, fieldAppVersion, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(r.AppVersion))
	return buf, nil
}

func (r *QueryLoginServerInfo) Unmarshal(b []byte) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("loginsvc: consuming tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldClientID && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(b)
			if n < 0 {
				return fmt.Errorf("loginsvc: consuming client id: %w", protowire.ParseError(n))
			}
			r.ClientID = s
			b = b[n:]
		case num == fieldAppVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("loginsvc: consuming app version: %w", protowire.ParseError(n))
			}
			r.AppVersion = uint32(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("loginsvc: skipping unknown field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}

// LoginServerInfoResponse is the Login service's sole reply: the Auth
// service's public endpoint.
type LoginServerInfoResponse struct {
	AuthHost string
	AuthPort uint32
}

func (r *LoginServerInfoResponse) Marshal() ([]byte, error) {
	var buf []byte
	buf = protowire.AppendTag(buf, fieldAuthHost, protowire.BytesType)
	buf = protowire.AppendString(buf, r.AuthHost)
	buf = protowire.AppendTag(buf, fieldAuthPort, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(r.AuthPort))
	return buf, nil
}

func (r *LoginServerInfoResponse) Unmarshal(b []byte) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("loginsvc: consuming tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldAuthHost && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(b)
			if n < 0 {
				return fmt.Errorf("loginsvc: consuming auth host: %w", protowire.ParseError(n))
			}
			r.AuthHost = s
			b = b[n:]
		case num == fieldAuthPort && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("loginsvc: consuming auth port: %w", protowire.ParseError(n))
			}
			r.AuthPort = uint32(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("loginsvc: skipping unknown field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}
