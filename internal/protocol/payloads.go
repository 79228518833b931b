package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"arena-shooter/internal/game"
)

// HeldKeys is the playerMovement payload. Clients send either a list of key
// names (["up","left"]) or the browser's key map ({"ArrowUp":true}). Unknown
// names are ignored.
type HeldKeys struct {
	Dirs game.Directions
}

func (h *HeldKeys) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		h.Dirs = fromList(list)
		return nil
	}
	var m map[string]bool
	if err := json.Unmarshal(b, &m); err != nil {
		return fmt.Errorf("held keys: want array or object: %w", err)
	}
	h.Dirs = fromMap(m)
	return nil
}

var _ msgpack.CustomDecoder = (*HeldKeys)(nil)

func (h *HeldKeys) DecodeMsgpack(dec *msgpack.Decoder) error {
	v, err := dec.DecodeInterface()
	if err != nil {
		return err
	}
	switch keys := v.(type) {
	case []any:
		list := make([]string, 0, len(keys))
		for _, k := range keys {
			if s, ok := k.(string); ok {
				list = append(list, s)
			}
		}
		h.Dirs = fromList(list)
	case map[string]any:
		m := make(map[string]bool, len(keys))
		for k, held := range keys {
			b, _ := held.(bool)
			m[k] = b
		}
		h.Dirs = fromMap(m)
	case nil:
		h.Dirs = 0
	default:
		return fmt.Errorf("held keys: want array or map, got %T", v)
	}
	return nil
}

func fromList(names []string) game.Directions {
	var d game.Directions
	for _, name := range names {
		if dir, ok := game.ParseDirection(name); ok {
			d |= dir
		}
	}
	return d
}

func fromMap(m map[string]bool) game.Directions {
	var d game.Directions
	for name, held := range m {
		if !held {
			continue
		}
		if dir, ok := game.ParseDirection(name); ok {
			d |= dir
		}
	}
	return d
}
