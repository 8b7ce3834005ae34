package feed

import (
	"bytes"
	"encoding/json"
)

const (
	msgTypeSubscribe = "subscribe"
	msgTypeUpdate    = "update"
	channelOrders    = "orders"
)

type SubscribeMessage struct {
	Type      string `json:"type"`
	Channel   string `json:"channel"`
	RequestID string `json:"requestId"`
}

func newSubscribeMessage(requestID string) SubscribeMessage {
	return SubscribeMessage{
		Type:      msgTypeSubscribe,
		Channel:   channelOrders,
		RequestID: requestID,
	}
}

// StreamMessage is one frame from the orders channel. Payload entries are
// kept raw so one bad record cannot spoil the rest of the frame.
type StreamMessage struct {
	Type      string            `json:"type"`
	Channel   string            `json:"channel"`
	RequestID string            `json:"requestId"`
	Payload   []json.RawMessage `json:"payload"`
}

// decodeFrame accepts a single message or an array of messages.
func decodeFrame(data []byte) ([]StreamMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var msgs []StreamMessage
		if err := json.Unmarshal(data, &msgs); err != nil {
			return nil, err
		}
		return msgs, nil
	}

	var msg StreamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return []StreamMessage{msg}, nil
}

type snapshotResponse struct {
	Bids snapshotSide `json:"bids"`
	Asks snapshotSide `json:"asks"`
}

type snapshotSide struct {
	Total   int               `json:"total"`
	Page    int               `json:"page"`
	PerPage int               `json:"perPage"`
	Records []json.RawMessage `json:"records"`
}

// complete reports whether page is the last one this side needs: the
// server sent a short page, or the pages so far cover the reported total.
func (s snapshotSide) complete(page, requested int) bool {
	perPage := s.PerPage
	if perPage <= 0 {
		perPage = requested
	}
	if len(s.Records) < perPage {
		return true
	}
	return s.Total > 0 && page*perPage >= s.Total
}
