// Package basket exposes a single capability over the two shapes a
// shopper's basket can take: a durable, database-backed basket for a
// registered shopper and an ephemeral value the transport round-trips
// for an anonymous one.
package basket

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

const anonymousVersion = 1

// Anonymous is the client-held basket of an anonymous shopper: a
// versioned product id → quantity mapping. The server never stores it;
// the transport must replay it verbatim on every call.
type Anonymous struct {
	Version int           `json:"v"`
	Items   map[int64]int `json:"items"`
}

func NewAnonymous() *Anonymous {
	return &Anonymous{Version: anonymousVersion, Items: map[int64]int{}}
}

func (a *Anonymous) Empty() bool { return len(a.Items) == 0 }

// Encode serializes the basket value for the client to carry, using
// the same base64-over-JSON shape as list cursors.
func (a *Anonymous) Encode() (string, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("encode basket state: %w", err)
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// DecodeAnonymous parses a client-held basket value. An empty string
// yields a fresh empty basket; a value with an unknown version is
// discarded rather than guessed at.
func DecodeAnonymous(encoded string) (*Anonymous, error) {
	if encoded == "" {
		return NewAnonymous(), nil
	}

	data, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode basket state: %w", err)
	}

	a := &Anonymous{}
	if err := json.Unmarshal(data, a); err != nil {
		return nil, fmt.Errorf("decode basket state: %w", err)
	}
	if a.Version != anonymousVersion {
		return NewAnonymous(), nil
	}
	if a.Items == nil {
		a.Items = map[int64]int{}
	}

	return a, nil
}

// AddClamped accumulates quantity on a line, clamped to the given
// stock level. A zero-stock product is never added.
func (a *Anonymous) AddClamped(productID int64, quantity, stock int) {
	if stock == 0 {
		return
	}
	next := a.Items[productID] + quantity
	if next > stock {
		next = stock
	}
	if next <= 0 {
		delete(a.Items, productID)
		return
	}
	a.Items[productID] = next
}

func (a *Anonymous) remove(productID int64, amount int) {
	if amount <= 0 {
		return
	}
	current, ok := a.Items[productID]
	if !ok {
		return
	}
	if amount >= current {
		delete(a.Items, productID)
		return
	}
	a.Items[productID] = current - amount
}

func (a *Anonymous) clamp(productID int64, available int) {
	if available <= 0 {
		delete(a.Items, productID)
		return
	}
	if a.Items[productID] > available {
		a.Items[productID] = available
	}
}
