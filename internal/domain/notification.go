package domain

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"strconv"
	"strings"

	"github.com/kursadbilgin/apns-push/internal/wire"
)

// Parameter keys accepted by ApplyParameters.
const (
	ParamToken            = "token"
	ParamPayload          = "payload"
	ParamMessage          = "message"
	ParamBadge            = "badge"
	ParamSound            = "sound"
	ParamContentAvailable = "contentAvailable"
)

// Notification is one push notification addressed to a single device.
type Notification struct {
	Token   []byte
	Payload map[string]any

	Message          *string
	Badge            *int
	Sound            *string
	ContentAvailable *bool
}

// NewNotification decodes tokenHex and returns a notification with an empty
// custom payload.
func NewNotification(tokenHex string) (*Notification, error) {
	token, err := DecodeToken(tokenHex)
	if err != nil {
		return nil, err
	}

	return &Notification{
		Token:   token,
		Payload: map[string]any{},
	}, nil
}

// DecodeToken turns the hex form of a device token into raw bytes.
func DecodeToken(tokenHex string) ([]byte, error) {
	tokenHex = strings.TrimSpace(tokenHex)
	if tokenHex == "" {
		return nil, fmt.Errorf("%w: token is empty", ErrInvalidToken)
	}
	if len(tokenHex)%2 != 0 {
		return nil, fmt.Errorf("%w: odd number of hex digits (%d)", ErrInvalidToken, len(tokenHex))
	}

	token, err := hex.DecodeString(tokenHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if len(token) > wire.MaxItemLength {
		return nil, fmt.Errorf("%w: token is %d bytes, limit is %d", ErrInvalidToken, len(token), wire.MaxItemLength)
	}

	return token, nil
}

// ApplyParameters copies the recognized keys of params onto n. Malformed values
// fall back to their defaults and are reported in the returned error, which
// wraps ErrInvalidParameter. n is fully populated either way.
func (n *Notification) ApplyParameters(params map[string]any) error {
	var issues []error
	report := func(key string, v any) {
		issues = append(issues, fmt.Errorf("%w: %s has unusable value %v (%T)", ErrInvalidParameter, key, v, v))
	}

	n.Payload = map[string]any{}
	if raw, ok := params[ParamPayload]; ok && raw != nil {
		payload, ok := coercePayload(raw)
		if ok {
			n.Payload = payload
		} else {
			report(ParamPayload, raw)
		}
	}

	n.Message = nil
	if raw, ok := params[ParamMessage]; ok && raw != nil {
		if s, ok := raw.(string); ok {
			n.Message = &s
		} else {
			report(ParamMessage, raw)
		}
	}

	n.Badge = nil
	if raw, ok := params[ParamBadge]; ok && raw != nil {
		if badge, ok := coerceInt(raw); ok {
			n.Badge = &badge
		} else {
			report(ParamBadge, raw)
		}
	}

	n.Sound = nil
	if raw, ok := params[ParamSound]; ok && raw != nil {
		if s, ok := raw.(string); ok {
			n.Sound = &s
		} else {
			report(ParamSound, raw)
		}
	}

	n.ContentAvailable = nil
	if raw, ok := params[ParamContentAvailable]; ok && raw != nil {
		if flag, ok := coerceBool(raw); ok {
			n.ContentAvailable = &flag
		} else {
			report(ParamContentAvailable, raw)
		}
	}

	return errors.Join(issues...)
}

// BuildAPSPayload returns a copy of the custom payload with the "aps"
// dictionary merged in. Any caller supplied "aps" key is replaced.
func (n *Notification) BuildAPSPayload() map[string]any {
	aps := map[string]any{}
	if n.Message != nil && *n.Message != "" {
		aps["alert"] = *n.Message
	}
	if n.Badge != nil {
		aps["badge"] = *n.Badge
	}
	if n.Sound != nil && *n.Sound != "" {
		aps["sound"] = *n.Sound
	}
	if n.ContentAvailable != nil && *n.ContentAvailable {
		aps["content-available"] = 1
	}

	payload := make(map[string]any, len(n.Payload)+1)
	maps.Copy(payload, n.Payload)
	payload["aps"] = aps
	return payload
}

// EncodePayload renders the APS payload as compact JSON without HTML escaping.
func (n *Notification) EncodePayload() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(n.BuildAPSPayload()); err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrEncoding, err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Serialize encodes n as a binary notification frame.
func (n *Notification) Serialize(opts wire.FrameOptions) ([]byte, error) {
	payload, err := n.EncodePayload()
	if err != nil {
		return nil, err
	}

	b := wire.NewBuilder()
	if err := b.AppendItem(wire.ItemDeviceToken, n.Token); err != nil {
		return nil, fmt.Errorf("%w: token: %v", ErrEncoding, err)
	}
	if err := b.AppendItem(wire.ItemPayload, payload); err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrEncoding, err)
	}
	if opts.IncludeIdentifier {
		b.AppendUint32(wire.ItemIdentifier, opts.Identifier)
	}

	return b.Bytes(), nil
}

func coercePayload(v any) (map[string]any, bool) {
	switch p := v.(type) {
	case map[string]any:
		return maps.Clone(p), true
	case string:
		if strings.TrimSpace(p) == "" {
			return map[string]any{}, true
		}
		var decoded map[string]any
		if err := json.Unmarshal([]byte(p), &decoded); err != nil || decoded == nil {
			return nil, false
		}
		return decoded, true
	}
	return nil, false
}

func coerceInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return integralFloat(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			if i > math.MaxInt32 || i < math.MinInt32 {
				return 0, false
			}
			return int(i), true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return integralFloat(f)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

func integralFloat(f float64) (int, bool) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}

func coerceBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return parsed, err == nil
	case float64:
		return b != 0, true
	case int:
		return b != 0, true
	case json.Number:
		f, err := b.Float64()
		return f != 0, err == nil
	}
	return false, false
}
