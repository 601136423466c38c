package authsvc

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	fieldID         protowire.Number = 1
	fieldSteamID    protowire.Number = 2
	fieldAppVersion protowire.Number = 3

	fieldStatus protowire.Number = 1
)

// GetServiceStatus is the AwaitServiceStatus request (spec.md §4.3, §8
// scenario 1): a numeric client id, its platform identity string, and its
// application version.
type GetServiceStatus struct {
	ID         uint32
	SteamID    string
	AppVersion uint32
}

func (r *GetServiceStatus) Marshal() ([]byte, error) {
	var buf []byte
	buf = protowire.AppendTag(buf, fieldID, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(r.ID))
	buf = protowire.AppendTag(buf, fieldSteamID, protowire.BytesType)
	buf = protowire.AppendString(buf, r.SteamID)
	buf = protowire.AppendTag(buf, fieldAppVersion, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(r.AppVersion))
	return buf, nil
}

func (r *GetServiceStatus) Unmarshal(b []byte) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("authsvc: consuming tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldID && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("authsvc: consuming id: %w", protowire.ParseError(n))
			}
			r.ID = uint32(v)
			b = b[n:]
		case num == fieldSteamID && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(b)
			if n < 0 {
				return fmt.Errorf("authsvc: consuming steam id: %w", protowire.ParseError(n))
			}
			r.SteamID = s
			b = b[n:]
		case num == fieldAppVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("authsvc: consuming app version: %w", protowire.ParseError(n))
			}
			r.AppVersion = uint32(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("authsvc: skipping unknown field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}

// GetServiceStatusResponse is the AwaitServiceStatus reply. Status is
// always 0 (healthy); there is no documented failure status in the
// reference, only the ability for a state to close the session outright.
type GetServiceStatusResponse struct {
	Status uint32
}

func (r *GetServiceStatusResponse) Marshal() ([]byte, error) {
	var buf []byte
	buf = protowire.AppendTag(buf, fieldStatus, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(r.Status))
	return buf, nil
}

func (r *GetServiceStatusResponse) Unmarshal(b []byte) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("authsvc: consuming tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		if num == fieldStatus && typ == protowire.VarintType {
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("authsvc: consuming status: %w", protowire.ParseError(n))
			}
			r.Status = uint32(v)
			b = b[n:]
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return fmt.Errorf("authsvc: skipping unknown field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return nil
}
