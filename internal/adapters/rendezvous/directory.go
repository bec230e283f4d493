package rendezvous

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/domain"
)

// Client implements core.Directory over the hub's keyed tables. Puts are
// last-write-wins server-side; every mutation comes back as a full table
// snapshot on the watch channel.

func (c *Client) PutParticipant(_ context.Context, rec domain.ParticipantRecord) error {
	return c.putRecord(TableParticipants, string(rec.ID), rec)
}

func (c *Client) DeleteParticipant(_ context.Context, id domain.ClientID) error {
	return c.enqueue(Frame{Op: OpDelete, Table: TableParticipants, Key: string(id)})
}

func (c *Client) GuardParticipant(_ context.Context, id domain.ClientID) error {
	return c.enqueue(Frame{Op: OpGuard, Table: TableParticipants, Key: string(id)})
}

func (c *Client) WatchParticipants(fn func(map[domain.ClientID]domain.ParticipantRecord)) (func(), error) {
	return c.watch(TableParticipants, func(raw map[string]json.RawMessage) {
		out := make(map[domain.ClientID]domain.ParticipantRecord, len(raw))
		for key, data := range raw {
			var rec domain.ParticipantRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				log.Warn().Err(err).Str("module", "rendezvous").Str("key", key).Msg("bad participant record")
				continue
			}
			out[domain.ClientID(key)] = rec
		}
		fn(out)
	})
}

func (c *Client) PutScreenShare(_ context.Context, rec domain.ScreenShareRecord) error {
	return c.putRecord(TableScreens, string(rec.ID), rec)
}

func (c *Client) DeleteScreenShare(_ context.Context, id domain.ClientID) error {
	return c.enqueue(Frame{Op: OpDelete, Table: TableScreens, Key: string(id)})
}

func (c *Client) GuardScreenShare(_ context.Context, id domain.ClientID) error {
	return c.enqueue(Frame{Op: OpGuard, Table: TableScreens, Key: string(id)})
}

func (c *Client) WatchScreenShares(fn func(map[domain.ClientID]domain.ScreenShareRecord)) (func(), error) {
	return c.watch(TableScreens, func(raw map[string]json.RawMessage) {
		out := make(map[domain.ClientID]domain.ScreenShareRecord, len(raw))
		for key, data := range raw {
			var rec domain.ScreenShareRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				log.Warn().Err(err).Str("module", "rendezvous").Str("key", key).Msg("bad screen record")
				continue
			}
			out[domain.ClientID(key)] = rec
		}
		fn(out)
	})
}

func (c *Client) putRecord(table, key string, rec any) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return c.enqueue(Frame{Op: OpPut, Table: table, Key: key, Record: b})
}
